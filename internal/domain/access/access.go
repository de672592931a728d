// Package access decides what a caller may see: plan entitlements gate
// features, household grants gate whose payroll data is read.
package access

import (
	"context"
	"errors"
	"slices"
	"strings"

	"payreport/internal/domain/auth"
)

const (
	FeatureAnnualDashboard = "annual_dashboard"
	FeatureExportPDF       = "export_pdf"
	FeatureExportXLSX      = "export_xlsx"
)

var (
	ErrFeatureNotAllowed = errors.New("feature not included in plan")
	ErrSubjectForbidden  = errors.New("no access to subject")
)

type Entitlements interface {
	Allows(ctx context.Context, plan, feature string) (bool, error)
}

type HouseholdAccess interface {
	CanAccess(ctx context.Context, user auth.UserContext, subjectID string) (bool, error)
}

// PlanEntitlements is the config-backed entitlement table, plan -> features.
type PlanEntitlements struct {
	plans map[string][]string
}

func NewPlanEntitlements(plans map[string][]string) *PlanEntitlements {
	normalized := make(map[string][]string, len(plans))
	for plan, features := range plans {
		key := strings.ToLower(strings.TrimSpace(plan))
		normalized[key] = append(normalized[key], features...)
	}
	return &PlanEntitlements{plans: normalized}
}

func (p *PlanEntitlements) Allows(_ context.Context, plan, feature string) (bool, error) {
	features, ok := p.plans[strings.ToLower(strings.TrimSpace(plan))]
	if !ok {
		return false, nil
	}
	return slices.Contains(features, feature), nil
}

// ClaimsHousehold grants access from the household list carried in the token.
type ClaimsHousehold struct{}

func (ClaimsHousehold) CanAccess(_ context.Context, user auth.UserContext, subjectID string) (bool, error) {
	return user.CanRead(subjectID), nil
}

// ResolveSubject returns whose data the request reads: the caller when
// requested is blank, otherwise requested if the household grants allow it.
func ResolveSubject(ctx context.Context, household HouseholdAccess, user auth.UserContext, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == user.UserID {
		return user.UserID, nil
	}
	ok, err := household.CanAccess(ctx, user, requested)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSubjectForbidden
	}
	return requested, nil
}

// FeatureForFormat maps an export format to the entitlement it needs.
func FeatureForFormat(format string) (string, bool) {
	switch format {
	case "pdf":
		return FeatureExportPDF, true
	case "xlsx":
		return FeatureExportXLSX, true
	}
	return "", false
}
