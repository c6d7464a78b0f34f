package inspection

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	GroupPhysicalMatch = "Physical Match"
	GroupDocumentation = "Documentation"
	GroupOther         = "Other"

	checklistKeyPrefix = "incoming_check_"
)

var groupOrder = []string{GroupPhysicalMatch, GroupDocumentation, GroupOther}

// ChecklistResolver turns a tenant's check catalog into the grouped checklist of one article
type ChecklistResolver struct {
	logger *zap.Logger
}

func NewChecklistResolver(logger *zap.Logger) *ChecklistResolver {
	return &ChecklistResolver{logger: logger}
}

type parsedDefinition struct {
	def     CheckDefinition
	value   float64
	numeric bool
}

// Resolve filters inactive definitions, orders the rest by numeric code and
// groups them. Malformed codes are logged and land in the Other group, after
// every numeric code.
func (r *ChecklistResolver) Resolve(definitions []CheckDefinition, hasDocumentation bool) []ChecklistGroup {
	parsed := make([]parsedDefinition, 0, len(definitions))
	for _, def := range definitions {
		if !def.Active {
			continue
		}
		value, err := parseCode(def.Code)
		if err != nil {
			r.logger.Warn("Malformed check definition code",
				zap.Int64("definition_id", def.ID),
				zap.String("tenant_id", def.TenantID),
				zap.String("code", def.Code),
				zap.Error(err))
		}
		parsed = append(parsed, parsedDefinition{def: def, value: value, numeric: err == nil})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		a, b := parsed[i], parsed[j]
		if a.numeric != b.numeric {
			return a.numeric
		}
		return a.numeric && a.value < b.value
	})

	byGroup := make(map[string][]ChecklistItem, len(groupOrder))
	for _, p := range parsed {
		group := groupFor(p.value, p.numeric)
		required := p.def.IsCritical
		if group == GroupDocumentation {
			required = p.def.IsCritical && hasDocumentation
		}

		hint := ""
		if p.def.RegulationReference != nil {
			hint = *p.def.RegulationReference
		}

		code := strings.TrimSpace(p.def.Code)
		byGroup[group] = append(byGroup[group], ChecklistItem{
			ID:                p.def.ID,
			Key:               checklistKeyPrefix + code,
			Code:              code,
			Label:             p.def.Description,
			Hint:              hint,
			Critical:          p.def.IsCritical,
			RequiredForAccept: required,
		})
	}

	groups := make([]ChecklistGroup, 0, len(groupOrder))
	for _, title := range groupOrder {
		if items := byGroup[title]; len(items) > 0 {
			groups = append(groups, ChecklistGroup{Title: title, Items: items})
		}
	}
	return groups
}

func parseCode(code string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(code), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("code %q is not a finite number", code)
	}
	return value, nil
}

func groupFor(value float64, numeric bool) string {
	switch {
	case !numeric:
		return GroupOther
	case value >= 1 && value <= 2:
		return GroupPhysicalMatch
	case value >= 3 && value <= 9:
		return GroupDocumentation
	default:
		return GroupOther
	}
}
