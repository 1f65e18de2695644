package convert

import "github.com/aktin/p21import/internal/model"

const (
	conceptDepartment         = "P21:DEP"
	conceptDepartmentCritical = "P21:DEP:CC"
	intensiveFlag             = "J"
)

// DepartmentConverter converts fab.csv, one fact per department stay.
type DepartmentConverter struct {
	instances *InstanceTracker
}

func (c *DepartmentConverter) Kind() model.FileKind { return model.KindDepartment }

func (c *DepartmentConverter) Convert(row model.Row) ([]model.Fact, error) {
	instance := c.instances.Next(row.Get(model.IDColumn))

	start, err := factDate("fabaufnahmedatum", row.Get("fabaufnahmedatum"))
	if err != nil {
		return nil, err
	}
	code := conceptDepartment
	if row.Get("kennungintensivbett") == intensiveFlag {
		code = conceptDepartmentCritical
	}
	f := text(code, model.NoValue, row.Get("fachabteilung"))
	f.StartDate = model.Time(start)
	f.Instance = instance
	if row.Has("fabentlassungsdatum") {
		end, err := factDate("fabentlassungsdatum", row.Get("fabentlassungsdatum"))
		if err != nil {
			return nil, err
		}
		f.EndDate = model.Time(end)
	}
	return []model.Fact{f}, nil
}
