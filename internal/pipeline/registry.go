// Package pipeline describes the automation pipelines as static
// metadata. Admin tooling reads this registry; the pipelines themselves
// live in the resolver, match and agent packages.
package pipeline

// Trigger identifies what causes a pipeline to run.
type Trigger string

// Trigger constants.
const (
	TriggerTransactionImported Trigger = "transaction_imported"
	TriggerDocumentUploaded    Trigger = "document_uploaded"
	TriggerManual              Trigger = "manual"
	TriggerSchedule            Trigger = "schedule"
)

// Step is one ordered stage within a pipeline.
type Step struct {
	Name      string
	Component string
	Order     int
}

// Pipeline is the static description of one automation flow.
type Pipeline struct {
	ID       string
	Name     string
	Trigger  Trigger
	Steps    []Step
}

// Registry returns the fixed pipeline descriptions in execution order.
func Registry() []Pipeline {
	return []Pipeline{
		{
			ID:      "partner_resolution",
			Name:    "Partner resolution",
			Trigger: TriggerTransactionImported,
			Steps: []Step{
				{Name: "IBAN exact match", Component: "resolver", Order: 1},
				{Name: "Learned pattern match", Component: "resolver", Order: 2},
				{Name: "VAT ID match", Component: "resolver", Order: 3},
				{Name: "Website mention", Component: "resolver", Order: 4},
				{Name: "Alias glob match", Component: "resolver", Order: 5},
				{Name: "Fuzzy name match", Component: "resolver", Order: 6},
				{Name: "AI company lookup", Component: "llm", Order: 7},
			},
		},
		{
			ID:      "document_matching",
			Name:    "Document matching",
			Trigger: TriggerDocumentUploaded,
			Steps: []Step{
				{Name: "Candidate pool filter", Component: "match", Order: 1},
				{Name: "Cross-product scoring", Component: "match", Order: 2},
				{Name: "Greedy assignment", Component: "match", Order: 3},
				{Name: "AI fallback matching", Component: "llm", Order: 4},
			},
		},
		{
			ID:      "categorization",
			Name:    "No-receipt categorization",
			Trigger: TriggerTransactionImported,
			Steps: []Step{
				{Name: "Learned pattern match", Component: "resolver", Order: 1},
				{Name: "Partner history match", Component: "resolver", Order: 2},
			},
		},
		{
			ID:      "agentic_search",
			Name:    "Agentic document search",
			Trigger: TriggerSchedule,
			Steps: []Step{
				{Name: "Local file search", Component: "agent", Order: 1},
				{Name: "Email attachment search", Component: "agent", Order: 2},
				{Name: "Email invoice-link search", Component: "agent", Order: 3},
			},
		},
	}
}

// Lookup returns the pipeline with the given ID, or nil.
func Lookup(id string) *Pipeline {
	for _, p := range Registry() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}
