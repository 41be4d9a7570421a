package graph

// Store labels used for nodes in Neo4j.
const (
	LabelDiagnosis  = "Diagnosis"
	LabelMedication = "Medication"
	LabelTestResult = "TestResult"
	LabelEntity     = "Entity"
)

// StoreLabels is the default label set searched by retrieval.
var StoreLabels = []string{LabelDiagnosis, LabelMedication, LabelTestResult, LabelEntity}

// StoreLabel maps a served node type onto its Neo4j label. Types without a
// dedicated label land on Entity.
func StoreLabel(t NodeType) string {
	switch t {
	case TypeCondition:
		return LabelDiagnosis
	case TypeLabTest:
		return LabelTestResult
	case TypeDrug:
		return LabelMedication
	default:
		return LabelEntity
	}
}
