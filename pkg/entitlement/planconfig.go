package entitlement

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// planFile mirrors the on-disk YAML shape of config/plans.yaml. Parsing a
// YAML file into a config struct is a collaborator contract per spec.md
// section 6 ("Configuration files ... collaborator-parsed structs").
type planFile struct {
	Plans []struct {
		ID       string          `yaml:"id"`
		Name     string          `yaml:"name"`
		TierRank int             `yaml:"tier_rank"`
		Features map[string]bool `yaml:"features"`
		Limits   map[string]int  `yaml:"limits"`
	} `yaml:"plans"`
}

// PlanCatalog holds every plan loaded from config, keyed by ID and by name
// (the free-plan synthesis path in resolve() looks plans up by name).
type PlanCatalog struct {
	byID   map[uuid.UUID]Plan
	byName map[string]Plan
}

// LoadPlanCatalog reads and parses the plan config file at path.
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan config %s: %w", path, err)
	}

	var pf planFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parsing plan config %s: %w", path, err)
	}

	cat := &PlanCatalog{byID: map[uuid.UUID]Plan{}, byName: map[string]Plan{}}
	for _, p := range pf.Plans {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("plan %q has invalid id: %w", p.Name, err)
		}
		plan := Plan{ID: id, Name: p.Name, TierRank: p.TierRank, Features: p.Features, Limits: p.Limits}
		cat.byID[id] = plan
		cat.byName[p.Name] = plan
	}
	return cat, nil
}

// ByID returns a deep copy of the plan, so callers can never mutate the
// catalog's canonical config (spec.md 4.1 step 5: "deep-copy to prevent
// mutation").
func (c *PlanCatalog) ByID(id uuid.UUID) (Plan, bool) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, false
	}
	return cloneplan(p), true
}

// ByName looks up a plan by name (e.g. "free").
func (c *PlanCatalog) ByName(name string) (Plan, bool) {
	p, ok := c.byName[name]
	if !ok {
		return Plan{}, false
	}
	return cloneplan(p), true
}

func cloneplan(p Plan) Plan {
	features := make(map[string]bool, len(p.Features))
	for k, v := range p.Features {
		features[k] = v
	}
	limits := make(map[string]int, len(p.Limits))
	for k, v := range p.Limits {
		limits[k] = v
	}
	p.Features = features
	p.Limits = limits
	return p
}

const freePlanName = "free"
