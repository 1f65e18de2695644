package convert

import (
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

const (
	conceptICD    = "ICD10GM"
	diagSecondary = "SD"
)

// DiagnosisConverter converts icd.csv. A record with a secondary code is two
// diagnoses and takes two instance numbers.
type DiagnosisConverter struct {
	instances *InstanceTracker
}

func (c *DiagnosisConverter) Kind() model.FileKind { return model.KindDiagnosis }

func (c *DiagnosisConverter) Convert(row model.Row) ([]model.Fact, error) {
	id := row.Get(model.IDColumn)
	primary := concept(conceptICD, normalize.ICDCode(row.Get("icdkode")))

	facts := diagnosisFacts(primary, row.Get("diagnoseart"), row.Get("icdversion"),
		row.Get("lokalisation"), row.Get("diagnosensicherheit"))
	facts = withInstance(facts, c.instances.Next(id))

	if row.Has("sekundärkode") {
		secondary := concept(conceptICD, normalize.ICDCode(row.Get("sekundärkode")))
		sd := diagnosisFacts(secondary, diagSecondary, row.Get("icdversion"),
			row.Get("sekundärlokalisation"), row.Get("sekundärdiagnosensicherheit"))
		sd = append(sd, text(secondary, modSecondary, primary))
		facts = append(facts, withInstance(sd, c.instances.Next(id))...)
	}
	return facts, nil
}

// diagnosisFacts returns presence, type and version facts of one code plus
// localisation and certainty when given.
func diagnosisFacts(code, diagType, version, localisation, certainty string) []model.Fact {
	facts := []model.Fact{
		presence(code),
		text(code, modDiagType, diagType),
		numeric(code, modVersion, version, "yyyy"),
	}
	if localisation != "" {
		facts = append(facts, text(code, modLocalisation, localisation))
	}
	if certainty != "" {
		facts = append(facts, text(code, modCertainty, certainty))
	}
	return facts
}
