package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// portalView renders what the package list reports for a dataset node and
// its resource nodes, the way DKAN derives it.
func portalView(t *testing.T, f *builderFixture, node domain.Document, resources map[string]domain.Document) domain.Document {
	t.Helper()
	items := func(doc domain.Document, field, key string) []string {
		var out []string
		for i := 0; i < 10; i++ {
			if v := doc.String(domain.FieldItem(field, i, key)); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	var tags []any
	for _, tid := range items(node, "field_tags", "tid") {
		tags = append(tags, map[string]any{"name": f.portal.vocabs[domain.VocabularyCategories][tid]})
	}
	var groups []any
	for _, nid := range items(node, domain.FieldGroupRef, "target_id") {
		group, err := f.portal.FetchNode(context.Background(), nid)
		require.NoError(t, err)
		groups = append(groups, map[string]any{"title": group["title"]})
	}
	var extras []any
	for i := 0; i < 10; i++ {
		key := node.String(domain.FieldItem(domain.FieldAdditionalInfo, i, "first"))
		if key == "" {
			continue
		}
		extras = append(extras, map[string]any{
			"key":   key,
			"value": node.String(domain.FieldItem(domain.FieldAdditionalInfo, i, "second")),
		})
	}
	var list []any
	for id, res := range resources {
		url, _ := domain.ExtractLink(res)
		list = append(list, map[string]any{
			"id":          id,
			"name":        res["title"],
			"url":         url,
			"format":      f.portal.vocabs[domain.VocabularyFormat][res.String(domain.FieldValue(domain.FieldFormat, "tid"))],
			"description": res.String(domain.FieldValue("body", "value")),
		})
	}

	pkg := domain.Document{
		"id":                "pkg-1",
		"name":              "haushalt",
		"title":             node["title"],
		"notes":             node.String(domain.FieldValue("body", "value")),
		"author":            node.String(domain.FieldValue("field_author", "value")),
		"author_email":      node.String(domain.FieldValue("field_contact_email", "value")),
		"state":             "active",
		"metadata_created":  "2021-03-01T10:00:00",
		"metadata_modified": "2021-03-02T10:00:00",
		"tags":              tags,
		"groups":            groups,
		"extras":            extras,
		"resources":         list,
	}
	// only licenses known to the portal show up as license_title
	license := node.String(domain.FieldValue("field_license", "value"))
	for _, name := range f.portal.vocabs["dcat_license"] {
		if name == license {
			pkg["license_title"] = license
		}
	}
	return pkg
}

func TestRoundTrip_RowSurvivesImportAndExport(t *testing.T) {
	base := []string{
		domain.ColTitle, "Haushalt",
		domain.ColDatasetName, "haushalt",
		domain.ColGroups, `"Stadtverwaltung" (12)`,
		domain.ColTags, `"Finanzen" (3)`,
		domain.ColDescription, "Der Haushaltsplan der Stadt",
		domain.ColTextFormat, "html",
		domain.ColHomepageURL, "https://example.org/haushalt",
		domain.ColAuthor, "Kämmerei",
		domain.ColContactName, "Erika Muster",
		domain.ColContactEmail, "kaemmerei@example.org",
		domain.ColGeoLocation, "Musterstadt",
		domain.ColGeoArea, "POINT (1 2)",
		domain.ColFrequency, "jährlich",
		domain.ColTemporalStart, "2020-01-01",
		domain.ColTemporalEnd, "2020-12-31",
		domain.ColGranularity, "Jahr",
		domain.ColDataDictionary, "https://example.org/dd",
		domain.ColDataDictionaryType, "text/html",
		domain.ColPublicAccessLevel, "public",
		domain.ColDataStandard, "https://example.org/standard",
		domain.ColLanguage, "de",
		domain.ColRelatedContent, `"Portal" (https://example.org)`,
		domain.ColPublisher, `"Stadt Musterstadt" (https://musterstadt.example)`,
		domain.ColGeocode, `"Musterstadt" (09162000)`,
		domain.ColGeolevel, `"Gemeinde" (5)`,
		domain.ColKeywords, `"Haushalt" (7)`,
		domain.ExtensionColumn("quelle"), "Statistikamt",

		domain.ColResourceName, "Haushalt 2020",
		domain.ColFormat, "csv",
		domain.ColResourceType, "url",
		domain.ColResourceURL, "https://example.org/haushalt.csv",
		domain.ColResourceDescription, "Tabelle",
		domain.ColResourceTextFormat, "plain_text",
		domain.ColResourceTypeDetailed, "url",
		domain.ColResourceLicense, `"dl-by-de/2.0" (40)`,
		domain.ColResourceStatus, `"aktiv" (1)`,
		domain.ColResourceRights, "https://example.org/rights",
		domain.ColResourceLicenseText, "Stadt Musterstadt",
		domain.ColResourceConformsTo, "https://example.org/schema",
	}

	tests := []struct {
		name        string
		license     []string
		wantLicense string
	}{
		{
			name:        "known license",
			license:     []string{domain.ColLicense, "dl-by-de/2.0"},
			wantLicense: "dl-by-de/2.0",
		},
		{
			name:        "custom license",
			license:     []string{domain.ColLicense, "", domain.ColCustomLicense, "Eigene Lizenz"},
			wantLicense: "Eigene Lizenz",
		},
		{
			name:        "license wins over custom license",
			license:     []string{domain.ColLicense, "dl-by-de/2.0", domain.ColCustomLicense, "Eigene Lizenz"},
			wantLicense: "dl-by-de/2.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newBuilderFixture()
			f.portal.vocabs["dcat_geocoding"] = map[string]string{"09162000": "Musterstadt"}
			f.portal.vocabs["dcat_geocoding_level"] = map[string]string{"5": "Gemeinde"}
			f.portal.vocabs["dcat_status"] = map[string]string{"1": "aktiv"}

			source := rowOf(append(append([]string{}, base...), tt.license...)...)

			ds, err := f.codec.DatasetFromRow(source, 2)
			require.NoError(t, err)
			require.NotNil(t, ds)
			require.Empty(t, ds.Problems())
			res, err := f.codec.ResourceFromRow(source, 2)
			require.NoError(t, err)
			require.NotNil(t, res)
			require.Empty(t, res.Problems())

			node, err := f.builder.BuildDataset(ctx, ds)
			require.NoError(t, err)
			node["nid"] = "500"
			assert.Equal(t, tt.wantLicense, node.String(domain.FieldValue("field_license", "value")))

			payload, err := f.builder.BuildResource(ctx, res, ResourceContext{DatasetNodeID: "500", DatasetTitle: ds.Title()})
			require.NoError(t, err)
			resNode := payload.Document
			resNode["nid"] = "501"
			resources := map[string]domain.Document{"res-1": resNode}

			rows, err := f.codec.ToRows(ctx, ExportInput{
				Package:       portalView(t, f, node, resources),
				Node:          node,
				Number:        1,
				ExtensionKeys: []string{"quelle"},
				ResourceNodes: resources,
			})
			require.NoError(t, err)
			require.Len(t, rows, 1)

			check := NewCheckService(nil, nil, nil, nil, domain.DefaultFieldMap(), domain.DefaultAppSettings())
			assert.Empty(t, check.CompareRows(source, rows[0]))
			assert.Equal(t, tt.wantLicense, rows[0].Value(domain.ColCustomLicense))
		})
	}
}
