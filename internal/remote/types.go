// Package remote provides the narrow call contract the migration engine uses to
// talk to one content environment, plus its Management-style REST adapter.
//
// Every call either returns a result or fails with *Error, whose Kind is
// classified once when the response is received. Nothing outside this package
// looks at status codes or error payloads.
package remote

import (
	"encoding/json"
	"time"
)

// Reference points at an entity by id, codename or external id. Requests may
// use any one of them; responses usually carry the id.
type Reference struct {
	ID         string `json:"id,omitempty"`
	Codename   string `json:"codename,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// ByID returns a reference by id.
func ByID(id string) Reference { return Reference{ID: id} }

// ByCodename returns a reference by codename.
func ByCodename(codename string) Reference { return Reference{Codename: codename} }

// IsZero reports whether the reference points at nothing.
func (r Reference) IsZero() bool {
	return r.ID == "" && r.Codename == "" && r.ExternalID == ""
}

// ContentType is a content type with its element definitions.
type ContentType struct {
	ID       string       `json:"id"`
	Codename string       `json:"codename"`
	Name     string       `json:"name"`
	Elements []ElementDef `json:"elements"`
}

// ElementDef is one element of a content type. Type uses the same strings as
// migration.ElementType.
type ElementDef struct {
	ID       string `json:"id"`
	Codename string `json:"codename"`
	Type     string `json:"type"`
}

// Collection groups items and assets.
type Collection struct {
	ID       string `json:"id"`
	Codename string `json:"codename"`
	Name     string `json:"name"`
}

// Language is an environment language.
type Language struct {
	ID        string `json:"id"`
	Codename  string `json:"codename"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
}

// Workflow is a workflow with its ordinary steps and the three built-in steps.
type Workflow struct {
	ID            string          `json:"id"`
	Codename      string          `json:"codename"`
	Name          string          `json:"name"`
	Scopes        []WorkflowScope `json:"scopes,omitempty"`
	Steps         []WorkflowStep  `json:"steps"`
	PublishedStep WorkflowStep    `json:"published_step"`
	ScheduledStep WorkflowStep    `json:"scheduled_step"`
	ArchivedStep  WorkflowStep    `json:"archived_step"`
}

// WorkflowScope limits a workflow to content types.
type WorkflowScope struct {
	ContentTypes []Reference `json:"content_types"`
}

// WorkflowStep is one step. TransitionsTo lists the steps a variant may move to
// from this one.
type WorkflowStep struct {
	ID            string       `json:"id"`
	Codename      string       `json:"codename"`
	Name          string       `json:"name"`
	TransitionsTo []Transition `json:"transitions_to,omitempty"`
}

// Transition is one outgoing edge of a step.
type Transition struct {
	Step Reference `json:"step"`
}

// AppliesTo reports whether the workflow is scoped to the content type. A
// workflow with no scopes applies to every type.
func (w *Workflow) AppliesTo(typeID, typeCodename string) bool {
	if len(w.Scopes) == 0 {
		return true
	}
	for _, s := range w.Scopes {
		for _, ct := range s.ContentTypes {
			if (ct.ID != "" && ct.ID == typeID) || (ct.Codename != "" && ct.Codename == typeCodename) {
				return true
			}
		}
	}
	return false
}

// Asset is an asset as stored in an environment.
type Asset struct {
	ID            string             `json:"id"`
	Codename      string             `json:"codename"`
	ExternalID    string             `json:"external_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	FileName      string             `json:"file_name"`
	Type          string             `json:"type,omitempty"`
	Size          int64              `json:"size,omitempty"`
	URL           string             `json:"url,omitempty"`
	Collection    *Reference         `json:"collection,omitempty"`
	Descriptions  []AssetDescription `json:"descriptions,omitempty"`
	FileReference *FileReference     `json:"file_reference,omitempty"`
	LastModified  time.Time          `json:"last_modified,omitempty"`
}

// AssetDescription is the description of an asset in one language.
type AssetDescription struct {
	Language    Reference `json:"language"`
	Description string    `json:"description"`
}

// FileReference identifies an uploaded binary.
type FileReference struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AssetUpsert is the payload for creating or updating an asset. A nil
// FileReference on update keeps the current binary.
type AssetUpsert struct {
	Codename      string             `json:"codename,omitempty"`
	ExternalID    string             `json:"external_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	FileReference *FileReference     `json:"file_reference,omitempty"`
	Collection    *Reference         `json:"collection,omitempty"`
	Descriptions  []AssetDescription `json:"descriptions"`
}

// ContentItem is the language-independent shell of an item.
type ContentItem struct {
	ID           string     `json:"id"`
	Codename     string     `json:"codename"`
	Name         string     `json:"name"`
	ExternalID   string     `json:"external_id,omitempty"`
	Type         Reference  `json:"type"`
	Collection   *Reference `json:"collection,omitempty"`
	LastModified time.Time  `json:"last_modified,omitempty"`
}

// ItemUpsert is the payload for creating or updating a content item.
type ItemUpsert struct {
	Codename   string     `json:"codename,omitempty"`
	Name       string     `json:"name"`
	ExternalID string     `json:"external_id,omitempty"`
	Type       Reference  `json:"type"`
	Collection *Reference `json:"collection,omitempty"`
}

// Variant is one language variant of a content item.
type Variant struct {
	Item         Reference      `json:"item"`
	Language     Reference      `json:"language"`
	Elements     []ElementValue `json:"elements"`
	Workflow     WorkflowState  `json:"workflow"`
	Schedule     *Schedule      `json:"schedule,omitempty"`
	LastModified time.Time      `json:"last_modified,omitempty"`
}

// WorkflowState is the workflow and step a variant is in.
type WorkflowState struct {
	Workflow Reference `json:"workflow_identifier"`
	Step     Reference `json:"step_identifier"`
}

// Schedule is the publish schedule of a variant in the scheduled step.
type Schedule struct {
	PublishTime *time.Time `json:"publish_time,omitempty"`
}

// ElementValue is the value of one element of a variant or component. Value
// holds the raw JSON encoding for the element's type: a string for text, rich
// text, URL slug and custom elements, a number, an RFC 3339 string for dates,
// or an array of references for linked items, subpages, assets, taxonomy and
// multiple choice.
type ElementValue struct {
	Element    Reference       `json:"element"`
	Value      json.RawMessage `json:"value"`
	Components []Component     `json:"components,omitempty"`
}

// Component is a rich-text component inlined into a variant.
type Component struct {
	ID       string         `json:"id"`
	Type     Reference      `json:"type"`
	Elements []ElementValue `json:"elements"`
}
