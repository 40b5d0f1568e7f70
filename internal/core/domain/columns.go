package domain

// Spreadsheet column headers. These names are the compatibility contract
// with existing spreadsheets and must not change.
const (
	ColDatasetID            = "Dataset-ID"
	ColNodeID               = "Node-ID"
	ColTitle                = "Titel"
	ColGroups               = "Groups"
	ColTags                 = "Tags"
	ColDescription          = "Description"
	ColTextFormat           = "Textformat"
	ColHomepageURL          = "Homepage URL"
	ColDatasetName          = "Dataset-Name"
	ColURL                  = "URL"
	ColAuthor               = "Author"
	ColContactName          = "Contact Name"
	ColContactEmail         = "Contact Email"
	ColGeoLocation          = "Geographical Location"
	ColGeoArea              = "Geographical Coverage Area"
	ColLicense              = "License"
	ColCustomLicense        = "Custom License"
	ColFrequency            = "Frequency"
	ColTemporalStart        = "Temporal Coverage Start"
	ColTemporalEnd          = "Temporal Coverage End"
	ColGranularity          = "Granularity"
	ColDataDictionary       = "Data Dictionary"
	ColDataDictionaryType   = "Data Dictionary Type"
	ColPublicAccessLevel    = "Public Access Level"
	ColDataStandard         = "Data Standard"
	ColLanguage             = "Language"
	ColRelatedContent       = "Related Content"
	ColContributor          = "DD Contributor"
	ColCreator              = "DD Creator"
	ColMaintainer           = "DD Maintainer"
	ColOriginator           = "DD Originator"
	ColPublisher            = "DD Publisher"
	ColGeonames             = "DD Geonames"
	ColGeocode              = "DD Geocode"
	ColGeolevel             = "DD Geolevel"
	ColState                = "State"
	ColCreated              = "Created"
	ColModified             = "Modified"
	ColKeywords             = "Schlagworte"
	ColResourceSeq          = "Lfd-Nr"
	ColResourceID           = "Resource-ID"
	ColResourceName         = "Resource-Name"
	ColFormat               = "Format"
	ColResourceType         = "Resource-Typ"
	ColResourceURL          = "Resource-Url"
	ColResourceDescription  = "Beschreibung"
	ColCheckOK              = "Prüfung OK?"
	ColResponseCode         = "HTTP-Responsecode"
	ColSticky               = "Sticky"
	ColCommentStatus        = "Kommentare-Status"
	ColPublished            = "Veröffentlicht?"
	ColFrontpage            = "Startseite"
	ColResourceTextFormat   = "Beschreibung-Format"
	ColResourceTypeDetailed = "Resource-Typ-Detail"
	ColResourceLicense      = "DD License"
	ColResourceStatus       = "DD Status"
	ColResourceLanguage     = "DD Language"
	ColResourceAvailability = "DD Availability"
	ColResourceRights       = "DD Rights"
	ColResourceLicenseText  = "DD License Text"
	ColResourceConformsTo   = "DD Conforms To"
)

// ExtensionPrefix marks columns that carry free key/value extension fields.
const ExtensionPrefix = "Extra-"

// DatasetColumns is the declared field set of a Dataset, in sheet order.
var DatasetColumns = []string{
	ColDatasetID, ColNodeID, ColTitle, ColGroups, ColTags, ColDescription,
	ColTextFormat, ColHomepageURL, ColDatasetName, ColURL, ColAuthor,
	ColContactName, ColContactEmail, ColGeoLocation, ColGeoArea, ColLicense,
	ColCustomLicense, ColFrequency, ColTemporalStart, ColTemporalEnd,
	ColGranularity, ColDataDictionary, ColDataDictionaryType,
	ColPublicAccessLevel, ColDataStandard, ColLanguage, ColRelatedContent,
	ColContributor, ColCreator, ColMaintainer, ColOriginator, ColPublisher,
	ColGeonames, ColGeocode, ColGeolevel, ColState, ColCreated, ColModified,
	ColKeywords,
}

// ResourceColumns is the declared field set of a Resource, in sheet order.
var ResourceColumns = []string{
	ColResourceSeq, ColResourceID, ColResourceName, ColFormat, ColResourceType,
	ColResourceURL, ColResourceDescription, ColCheckOK, ColResponseCode,
	ColSticky, ColCommentStatus, ColPublished, ColFrontpage,
	ColResourceTextFormat, ColResourceTypeDetailed,
	ColResourceLicense, ColResourceStatus, ColResourceLanguage,
	ColResourceAvailability, ColResourceRights, ColResourceLicenseText,
	ColResourceConformsTo,
}
