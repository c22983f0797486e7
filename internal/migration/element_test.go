package migration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestElementJSONDispatch(t *testing.T) {
	input := `{"system":{"codename":"home","name":"Home","language":"en","type":"page","workflow":"default","workflow_step":"draft"},
	"elements":[
		{"codename":"title","type":"text","value":"Hello"},
		{"codename":"empty","type":"text","value":null},
		{"codename":"count","type":"number","value":4.5},
		{"codename":"when","type":"date_time","value":"2024-03-01T10:00:00Z"},
		{"codename":"body","type":"rich_text","value":"<p>x</p>"},
		{"codename":"related","type":"modular_content","value":[{"codename":"about"},{"codename":""}]},
		{"codename":"hero","type":"asset","value":[{"codename":"hero_jpg"}]},
		{"codename":"tags","type":"taxonomy","value":null},
		{"codename":"slug","type":"url_slug","value":"home"}
	]}`

	var item Item
	require.NoError(t, json.Unmarshal([]byte(input), &item))
	require.Len(t, item.Elements, 9)

	assert.Equal(t, Text{Value: strPtr("Hello")}, item.Element("title").Value)
	assert.Equal(t, Text{}, item.Element("empty").Value)

	num, ok := item.Element("count").Value.(Number)
	require.True(t, ok)
	assert.InDelta(t, 4.5, *num.Value, 0.0001)

	dt, ok := item.Element("when").Value.(DateTime)
	require.True(t, ok)
	assert.True(t, dt.Value.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, RichText{Markup: "<p>x</p>"}, item.Element("body").Value)

	related, ok := item.Element("related").Value.(References)
	require.True(t, ok)
	assert.Equal(t, TypeModularContent, related.Type())
	assert.Equal(t, []string{"about"}, related.Codenames())

	tags := item.Element("tags").Value.(References)
	assert.Equal(t, TypeTaxonomy, tags.Kind)
	assert.Empty(t, tags.Refs)

	assert.Equal(t, URLSlug{Value: "home"}, item.Element("slug").Value)
	assert.False(t, item.IsComponent())
}

func TestElementUnknownTypeRejected(t *testing.T) {
	var el Element
	err := json.Unmarshal([]byte(`{"codename":"x","type":"guidelines","value":""}`), &el)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown element type")
}

func TestElementMarshalKeepsShape(t *testing.T) {
	el := Element{Codename: "links", Value: References{Kind: TypeSubpages}}
	out, err := json.Marshal(el)
	require.NoError(t, err)
	assert.JSONEq(t, `{"codename":"links","type":"subpages","value":[]}`, string(out))

	var back Element
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, TypeSubpages, back.Type())

	_, err = json.Marshal(Element{Codename: "nil"})
	assert.Error(t, err)
}

func TestDataValidate(t *testing.T) {
	good := Data{
		Items: []Item{
			{System: System{Codename: "a", Language: "en", Type: "page", Workflow: "default", WorkflowStep: "draft"}},
			{System: System{Codename: "a", Language: "de", Type: "page", Workflow: "default", WorkflowStep: "draft"}},
			{System: System{Codename: "cta", Language: "en", Type: "cta"}},
		},
		Assets: []Asset{{Codename: "logo"}},
	}
	require.NoError(t, good.Validate())
	assert.Len(t, good.ContentItems(), 2)
	assert.Len(t, good.DistinctItemCodenames(), 1)
	assert.Len(t, good.Components(), 1)
	assert.Equal(t, []string{"de", "en"}, good.Languages())

	bad := Data{
		Items: []Item{
			{System: System{Codename: "a", Language: "en", Type: "page", Workflow: "default", WorkflowStep: "draft"}},
			{System: System{Codename: "a", Language: "en", Type: "page", Workflow: "default", WorkflowStep: "draft"}},
			{System: System{Codename: "b", Language: "en", Type: "page", WorkflowStep: "draft"}},
		},
		Assets: []Asset{{Codename: "logo"}, {Codename: "logo"}},
	}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate item a (en)")
	assert.Contains(t, err.Error(), `duplicate asset "logo"`)
	assert.Contains(t, err.Error(), "no workflow")
}

func TestReferencedDataIgnoresEmpty(t *testing.T) {
	r := NewReferencedData()
	r.AddItem("")
	r.AddAsset("")
	r.AddItem("a")
	other := NewReferencedData()
	other.AddAsset("img")
	r.Merge(other)
	r.Merge(nil)

	assert.True(t, r.HasItem("a"))
	assert.True(t, r.HasAsset("img"))
	assert.Len(t, r.ItemCodenames, 1)
	assert.Len(t, r.AssetCodenames, 1)
}
