// Package entities wires the concrete form-builder entity graph on top of the
// formstore framework: forms contain containers (pages), containers contain
// elements (fields), elements carry settings and choices, and forms collect
// submissions with their values and participants.
package entities

import (
	"formstore"
)

// Entity kinds of the form graph.
const (
	KindForm            formstore.Kind = "form"
	KindContainer       formstore.Kind = "container"
	KindElement         formstore.Kind = "element"
	KindElementSetting  formstore.Kind = "element_setting"
	KindElementChoice   formstore.Kind = "element_choice"
	KindSubmission      formstore.Kind = "submission"
	KindSubmissionValue formstore.Kind = "submission_value"
	KindParticipant     formstore.Kind = "participant"
)

// Form statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Submission statuses.
const (
	StatusProgressing = "progressing"
	StatusCompleted   = "completed"
)

func FormSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindForm,
		Table:      "forms",
		MetaTable:  "form_meta",
		CacheGroup: "forms",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "title", Type: formstore.TypeString},
			{Name: "slug", Type: formstore.TypeString},
			{Name: "author_id", Type: formstore.TypeInt},
			{Name: "status", Type: formstore.TypeEnum, Enum: []string{StatusDraft, StatusPublished}},
			{Name: "timestamp", Type: formstore.TypeInt},
		},
		TitleColumn:  "title",
		AuthorColumn: "author_id",
		StatusColumn: "status",
		Orderable:    []string{"title", "timestamp", "status"},
	}
}

func ContainerSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindContainer,
		Table:      "containers",
		MetaTable:  "container_meta",
		CacheGroup: "containers",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "form_id", Type: formstore.TypeInt},
			{Name: "label", Type: formstore.TypeString},
			{Name: "sort", Type: formstore.TypeInt},
		},
		TitleColumn:   "label",
		SortColumn:    "sort",
		ParentColumns: map[formstore.Kind]string{KindForm: "form_id"},
	}
}

func ElementSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindElement,
		Table:      "elements",
		MetaTable:  "element_meta",
		CacheGroup: "elements",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "container_id", Type: formstore.TypeInt},
			{Name: "label", Type: formstore.TypeString},
			{Name: "sort", Type: formstore.TypeInt},
			{Name: "type", Type: formstore.TypeString},
		},
		TitleColumn:   "label",
		SortColumn:    "sort",
		TypeColumn:    "type",
		Orderable:     []string{"label", "type"},
		ParentColumns: map[formstore.Kind]string{KindContainer: "container_id"},
	}
}

// ElementSettingSchema declares the value column as an element reference:
// settings such as a linked element id are remapped when a form is
// duplicated, while non-numeric setting values pass through untouched.
func ElementSettingSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindElementSetting,
		Table:      "element_settings",
		MetaTable:  "element_setting_meta",
		CacheGroup: "element_settings",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "element_id", Type: formstore.TypeInt},
			{Name: "name", Type: formstore.TypeString},
			{Name: "value", Type: formstore.TypeString},
		},
		ParentColumns: map[formstore.Kind]string{KindElement: "element_id"},
		RefColumns:    map[string]formstore.Kind{"value": KindElement},
	}
}

func ElementChoiceSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindElementChoice,
		Table:      "element_choices",
		MetaTable:  "element_choice_meta",
		CacheGroup: "element_choices",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "element_id", Type: formstore.TypeInt},
			{Name: "field", Type: formstore.TypeString},
			{Name: "value", Type: formstore.TypeString},
			{Name: "sort", Type: formstore.TypeInt},
		},
		SortColumn:    "sort",
		ParentColumns: map[formstore.Kind]string{KindElement: "element_id"},
	}
}

func SubmissionSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindSubmission,
		Table:      "submissions",
		MetaTable:  "submission_meta",
		CacheGroup: "submissions",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "form_id", Type: formstore.TypeInt},
			{Name: "user_id", Type: formstore.TypeInt},
			{Name: "timestamp", Type: formstore.TypeInt},
			{Name: "remote_addr", Type: formstore.TypeString},
			{Name: "status", Type: formstore.TypeEnum, Enum: []string{StatusCompleted, StatusProgressing}},
		},
		StatusColumn:  "status",
		Orderable:     []string{"timestamp", "status"},
		ParentColumns: map[formstore.Kind]string{KindForm: "form_id"},
	}
}

// SubmissionValueSchema carries one answered field. The form_id filter is
// resolved through the submissions table, so hosts can list every value of a
// form without denormalizing the form id onto each value row.
func SubmissionValueSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindSubmissionValue,
		Table:      "submission_values",
		MetaTable:  "submission_value_meta",
		CacheGroup: "submission_values",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "submission_id", Type: formstore.TypeInt},
			{Name: "element_id", Type: formstore.TypeInt},
			{Name: "field", Type: formstore.TypeString},
			{Name: "value", Type: formstore.TypeString},
		},
		ParentColumns: map[formstore.Kind]string{KindSubmission: "submission_id"},
		RefColumns:    map[string]formstore.Kind{"element_id": KindElement},
		FilterJoins: map[string]formstore.JoinFilter{
			"form_id": {
				Join: formstore.Join{
					Table: "submissions",
					On:    `"submissions"."id" = "submission_values"."submission_id"`,
				},
				Column: "submissions.form_id",
			},
		},
	}
}

func ParticipantSchema() *formstore.Schema {
	return &formstore.Schema{
		Kind:       KindParticipant,
		Table:      "participants",
		MetaTable:  "participant_meta",
		CacheGroup: "participants",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "form_id", Type: formstore.TypeInt},
			{Name: "user_id", Type: formstore.TypeInt},
		},
		ParentColumns: map[formstore.Kind]string{KindForm: "form_id"},
	}
}

// Schemas returns every schema of the form graph in registration order.
func Schemas() []*formstore.Schema {
	return []*formstore.Schema{
		FormSchema(),
		ContainerSchema(),
		ElementSchema(),
		ElementSettingSchema(),
		ElementChoiceSchema(),
		SubmissionSchema(),
		SubmissionValueSchema(),
		ParticipantSchema(),
	}
}

// NewRegistry builds the fully wired registry for the form graph. Submissions
// and participants cascade-delete with their form but are excluded from
// duplication: copying a form copies its structure, not its collected data.
func NewRegistry(store formstore.RowStore, cache formstore.CacheClient, opts ...formstore.Option) (*formstore.Registry, error) {
	reg := formstore.NewRegistry(store, cache, opts...)
	for _, s := range Schemas() {
		if _, err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	links := []struct {
		parent, child formstore.Kind
		opts          []formstore.LinkOption
	}{
		{KindForm, KindContainer, nil},
		{KindContainer, KindElement, nil},
		{KindElement, KindElementSetting, nil},
		{KindElement, KindElementChoice, nil},
		{KindForm, KindSubmission, []formstore.LinkOption{formstore.WithoutDuplication()}},
		{KindSubmission, KindSubmissionValue, nil},
		{KindForm, KindParticipant, []formstore.LinkOption{formstore.WithoutDuplication()}},
	}
	for _, l := range links {
		if err := reg.Link(l.parent, l.child, l.opts...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
