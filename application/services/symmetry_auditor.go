package services

import (
	"context"
	"sort"

	"districtgraph/application/ports"
	pkgerrors "districtgraph/pkg/errors"

	"go.uber.org/zap"
)

// Edge is a directed adjacency reference From -> To
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AuditReport lists the adjacency invariant violations found in the store
type AuditReport struct {
	UnitCount          int      `json:"unitCount"`
	AsymmetricEdges    []Edge   `json:"asymmetricEdges"`
	SelfLoops          []string `json:"selfLoops"`
	DanglingReferences []Edge   `json:"danglingReferences"`
}

// Clean reports whether the audit found nothing
func (r *AuditReport) Clean() bool {
	return len(r.AsymmetricEdges) == 0 && len(r.SelfLoops) == 0 && len(r.DanglingReferences) == 0
}

// SymmetryAuditor checks the stored graph without modifying it
type SymmetryAuditor struct {
	unitRepo ports.UnitRepository
	instrumentation
}

// NewSymmetryAuditor creates a new symmetry auditor
func NewSymmetryAuditor(unitRepo ports.UnitRepository, logger *zap.Logger, opts ...Option) *SymmetryAuditor {
	return &SymmetryAuditor{
		unitRepo:        unitRepo,
		instrumentation: newInstrumentation(logger, opts),
	}
}

// Audit scans every unit and reports asymmetric edges, self loops and
// references to units that are not stored
func (a *SymmetryAuditor) Audit(ctx context.Context) (*AuditReport, error) {
	var report *AuditReport
	err := a.run(ctx, "Audit", func(ctx context.Context) error {
		units, err := a.unitRepo.List(ctx)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to list units")
		}

		report = &AuditReport{
			UnitCount:          len(units),
			AsymmetricEdges:    []Edge{},
			SelfLoops:          []string{},
			DanglingReferences: []Edge{},
		}

		index := make(map[string]int, len(units))
		for i, u := range units {
			index[u.ID] = i
		}

		for _, u := range units {
			for _, id := range u.AdjacentIDs {
				if id == u.ID {
					report.SelfLoops = append(report.SelfLoops, u.ID)
					continue
				}
				i, ok := index[id]
				if !ok {
					report.DanglingReferences = append(report.DanglingReferences, Edge{From: u.ID, To: id})
					continue
				}
				if !units[i].IsAdjacentTo(u.ID) {
					report.AsymmetricEdges = append(report.AsymmetricEdges, Edge{From: u.ID, To: id})
				}
			}
		}

		sortEdges(report.AsymmetricEdges)
		sortEdges(report.DanglingReferences)
		sort.Strings(report.SelfLoops)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Clean() {
		a.logger.Warn("Adjacency audit found violations",
			zap.Int("asymmetric", len(report.AsymmetricEdges)),
			zap.Int("selfLoops", len(report.SelfLoops)),
			zap.Int("dangling", len(report.DanglingReferences)),
		)
	}
	return report, nil
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
