package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// fillWindow creates the instances of the window starting at start that the users do not
// have yet. It returns the number of rows written.
func fillWindow(ctx context.Context, repo Repository, loc *time.Location, contract *models.Contract, userIDs []string, start time.Time) (int, error) {
	userIDs = normaliseIDs(userIDs)
	if contract == nil || len(userIDs) == 0 {
		return 0, nil
	}

	templates, err := repo.ListObligations(ctx, contract.ID)
	if err != nil {
		return 0, fmt.Errorf("list obligations: %w", err)
	}

	candidates := GenerateInstances(templates, contract, userIDs, start)
	if len(candidates) == 0 {
		return 0, nil
	}

	windowStart := midnight(start)
	existing, err := repo.ListInstances(ctx, InstanceFilter{
		ContractID: contract.ID,
		UserIDs:    userIDs,
		From:       windowStart,
		To:         windowStart.AddDate(0, 0, WindowDays),
	})
	if err != nil {
		return 0, fmt.Errorf("list instances: %w", err)
	}

	seen := make(map[models.InstanceKey]struct{}, len(existing))
	for _, instance := range existing {
		seen[instance.KeyIn(loc)] = struct{}{}
	}

	missing := candidates[:0]
	for _, candidate := range candidates {
		if _, ok := seen[candidate.KeyIn(loc)]; ok {
			continue
		}
		missing = append(missing, candidate)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := repo.CreateInstances(ctx, missing); err != nil {
		return 0, fmt.Errorf("create instances: %w", err)
	}
	return len(missing), nil
}
