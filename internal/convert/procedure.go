package convert

import (
	"github.com/aktin/p21import/internal/model"
	"github.com/aktin/p21import/internal/normalize"
)

const conceptOPS = "OPS"

// ProcedureConverter converts ops.csv. All facts of a procedure start at
// its opsdatum.
type ProcedureConverter struct {
	instances *InstanceTracker
}

func (c *ProcedureConverter) Kind() model.FileKind { return model.KindProcedure }

func (c *ProcedureConverter) Convert(row model.Row) ([]model.Fact, error) {
	instance := c.instances.Next(row.Get(model.IDColumn))

	date, err := factDate("opsdatum", row.Get("opsdatum"))
	if err != nil {
		return nil, err
	}
	code := concept(conceptOPS, normalize.OPSCode(row.Get("opskode")))
	facts := []model.Fact{
		presence(code),
		numeric(code, modVersion, row.Get("opsversion"), "yyyy"),
	}
	if row.Has("lokalisation") {
		facts = append(facts, text(code, modLocalisation, row.Get("lokalisation")))
	}
	for i := range facts {
		facts[i].StartDate = model.Time(date)
		facts[i].Instance = instance
	}
	return facts, nil
}
