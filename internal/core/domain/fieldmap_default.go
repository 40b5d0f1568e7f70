package domain

func nodeScalar(field, key string) NodePath {
	return NodePath{Path: FieldValue(field, key)}
}

func datasetSpec(col string, m Mapping) FieldSpec {
	return FieldSpec{Column: col, Entity: EntityDataset, Mapping: m}
}

func resourceSpec(col string, m Mapping) FieldSpec {
	return FieldSpec{Column: col, Entity: EntityResource, Mapping: m}
}

// writable marks a node path spec as written back to the same path.
func writable(s FieldSpec) FieldSpec {
	if np, ok := s.Mapping.(NodePath); ok {
		s.Target = np.Path
	}
	return s
}

func withTarget(s FieldSpec, target Path) FieldSpec {
	s.Target = target
	return s
}

func withType(s FieldSpec, t ValueType) FieldSpec {
	s.Type = t
	return s
}

func mandatory(s FieldSpec) FieldSpec {
	s.Mandatory = true
	return s
}

func optional(s FieldSpec) FieldSpec {
	s.Optional = true
	return s
}

func serverAssigned(s FieldSpec) FieldSpec {
	s.ServerAssigned = true
	return s
}

// DefaultFieldMap returns the column table for DKAN 7.x portals with the
// DCAT-AP.de extension installed.
func DefaultFieldMap() *FieldMap {
	return NewFieldMap([]FieldSpec{
		serverAssigned(datasetSpec(ColDatasetID, PackageKey{Key: "id"})),
		serverAssigned(datasetSpec(ColNodeID, NodePath{Path: Path{Key("nid")}})),
		mandatory(datasetSpec(ColTitle, PackageKey{Key: "title"})),
		datasetSpec(ColGroups, GroupCollect{Field: FieldGroupRef, PackageKey: "groups"}),
		datasetSpec(ColTags, TagList{Field: "field_tags", Vocabulary: VocabularyCategories, PackageKey: "tags"}),
		datasetSpec(ColDescription, PackageKey{Key: "notes"}),
		withType(datasetSpec(ColTextFormat, nodeScalar("body", "format")), TypeTextFormat),
		writable(datasetSpec(ColHomepageURL, nodeScalar("field_landing_page", "url"))),
		serverAssigned(mandatory(datasetSpec(ColDatasetName, PackageKey{Key: "name"}))),
		serverAssigned(datasetSpec(ColURL, PackageKey{Key: "url"})),
		withTarget(datasetSpec(ColAuthor, PackageKey{Key: "author"}), FieldValue("field_author", "value")),
		writable(datasetSpec(ColContactName, nodeScalar("field_contact_name", "value"))),
		withTarget(datasetSpec(ColContactEmail, PackageKey{Key: "author_email"}), FieldValue("field_contact_email", "value")),
		writable(datasetSpec(ColGeoLocation, nodeScalar("field_spatial_geographical_cover", "value"))),
		withType(writable(datasetSpec(ColGeoArea, nodeScalar("field_spatial", "wkt"))), TypeWKT),
		withTarget(datasetSpec(ColLicense, PackageKey{Key: "license_title"}), FieldValue("field_license", "value")),
		serverAssigned(writable(datasetSpec(ColCustomLicense, nodeScalar("field_license", "value")))),
		writable(datasetSpec(ColFrequency, nodeScalar("field_frequency", "value"))),
		withType(writable(datasetSpec(ColTemporalStart, nodeScalar("field_temporal_coverage", "value"))), TypeDate),
		withType(writable(datasetSpec(ColTemporalEnd, nodeScalar("field_temporal_coverage", "value2"))), TypeDate),
		writable(datasetSpec(ColGranularity, nodeScalar("field_granularity", "value"))),
		writable(datasetSpec(ColDataDictionary, nodeScalar("field_data_dictionary", "value"))),
		writable(datasetSpec(ColDataDictionaryType, nodeScalar("field_data_dictionary_type", "value"))),
		writable(datasetSpec(ColPublicAccessLevel, nodeScalar("field_public_access_level", "value"))),
		writable(datasetSpec(ColDataStandard, nodeScalar("field_conforms_to", "url"))),
		writable(datasetSpec(ColLanguage, nodeScalar("field_language", "value"))),
		datasetSpec(ColRelatedContent, RelatedList{Field: "field_related_content"}),
		datasetSpec(ColContributor, RelatedList{Field: "field_dcatapde_contributor"}),
		datasetSpec(ColCreator, RelatedList{Field: "field_dcatapde_creator"}),
		datasetSpec(ColMaintainer, RelatedList{Field: "field_dcatapde_maintainer"}),
		datasetSpec(ColOriginator, RelatedList{Field: "field_dcatapde_originator"}),
		datasetSpec(ColPublisher, RelatedList{Field: "field_dcatapde_publisher"}),
		datasetSpec(ColGeonames, RelatedList{Field: "field_dcatapde_spatialgeonames"}),
		datasetSpec(ColGeocode, TagList{Field: "field_dcatapde_geocode", Vocabulary: "dcat_geocoding"}),
		datasetSpec(ColGeolevel, TagList{Field: "field_dcatapde_geolevel", Vocabulary: "dcat_geocoding_level"}),
		serverAssigned(datasetSpec(ColState, PackageKey{Key: "state"})),
		serverAssigned(datasetSpec(ColCreated, PackageKey{Key: "metadata_created"})),
		serverAssigned(datasetSpec(ColModified, PackageKey{Key: "metadata_modified"})),
		datasetSpec(ColKeywords, TagList{Field: "field_dataset_tags", Vocabulary: VocabularyKeywords}),

		serverAssigned(resourceSpec(ColResourceSeq, Derived{Name: DerivedSequence})),
		serverAssigned(resourceSpec(ColResourceID, PackageKey{Key: "id"})),
		mandatory(resourceSpec(ColResourceName, PackageKey{Key: "name"})),
		resourceSpec(ColFormat, PackageKey{Key: "format"}),
		resourceSpec(ColResourceType, Derived{Name: DerivedKind}),
		resourceSpec(ColResourceURL, PackageKey{Key: "url"}),
		resourceSpec(ColResourceDescription, PackageKey{Key: "description"}),
		serverAssigned(resourceSpec(ColCheckOK, Derived{Name: DerivedCheckOK})),
		serverAssigned(resourceSpec(ColResponseCode, Derived{Name: DerivedResponseCode})),
		serverAssigned(optional(resourceSpec(ColSticky, NodePath{Path: Path{Key("sticky")}}))),
		serverAssigned(optional(resourceSpec(ColCommentStatus, NodePath{Path: Path{Key("comment")}}))),
		serverAssigned(optional(resourceSpec(ColPublished, NodePath{Path: Path{Key("status")}}))),
		serverAssigned(optional(resourceSpec(ColFrontpage, NodePath{Path: Path{Key("promote")}}))),
		optional(withType(resourceSpec(ColResourceTextFormat, nodeScalar("body", "format")), TypeTextFormat)),
		optional(resourceSpec(ColResourceTypeDetailed, Derived{Name: DerivedKindDetailed})),
		optional(resourceSpec(ColResourceLicense, TagList{Field: "field_dcatapde_license", Vocabulary: "dcat_license"})),
		optional(resourceSpec(ColResourceStatus, TagList{Field: "field_dcatapde_status", Vocabulary: "dcat_status"})),
		optional(resourceSpec(ColResourceLanguage, TagList{Field: "field_dcatapde_languagesingle", Vocabulary: "dcat_language"})),
		optional(resourceSpec(ColResourceAvailability, TagList{Field: "field_dcatapde_avail", Vocabulary: "dcat_availability"})),
		optional(writable(resourceSpec(ColResourceRights, nodeScalar("field_dcatapde_rights", "url")))),
		optional(writable(resourceSpec(ColResourceLicenseText, nodeScalar("field_dcatapde_licatt", "value")))),
		optional(writable(resourceSpec(ColResourceConformsTo, nodeScalar("field_conforms_to", "url")))),
	})
}
