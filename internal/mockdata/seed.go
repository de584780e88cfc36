// Package mockdata seeds deterministic demo subscriptions so the API is
// usable out of the box without a cloud billing export.
package mockdata

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"costopt-backend/internal/subscriptions"
)

// DemoUserID owns the seeded subscriptions. Matches the guest identity the
// auth middleware derives from "X-Guest-Id: demo".
const DemoUserID = "guest:demo"

const (
	historyDays = 30
	fakerSeed   = 1337
)

// costPattern shapes a subscription's daily spend curve.
type costPattern int

const (
	patternSteady costPattern = iota
	patternGrowing
	patternSpiky
)

var resourceTypes = []string{
	"virtual_machine",
	"database",
	"storage_account",
	"kubernetes_cluster",
	"app_service",
}

var regions = []string{"eastus", "westus2", "westeurope", "southeastasia"}

type subscriptionSpec struct {
	name      string
	provider  string
	spend     float64
	resources int
	pattern   costPattern
}

var demoSubscriptions = []subscriptionSpec{
	{name: "Production", provider: "azure", spend: 12400, resources: 8, pattern: patternSpiky},
	{name: "Staging", provider: "azure", spend: 3100, resources: 5, pattern: patternSteady},
	{name: "Data Platform", provider: "aws", spend: 7800, resources: 6, pattern: patternGrowing},
}

// Seed creates the demo subscriptions with resources and 30 days of cost
// history. Generation is seeded, so repeated runs produce the same data.
func Seed(ctx context.Context, subs *subscriptions.Service, userID string) error {
	faker := gofakeit.New(fakerSeed)

	for _, spec := range demoSubscriptions {
		sub, err := subs.Create(ctx, userID, subscriptions.CreateInput{
			Name:                spec.name,
			Provider:            spec.provider,
			CurrentMonthlySpend: spec.spend,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", spec.name, err)
		}

		if err := subs.SetResources(ctx, userID, sub.ID, buildResources(faker, spec)); err != nil {
			return fmt.Errorf("resources for %s: %w", spec.name, err)
		}
		if err := subs.IngestCosts(ctx, userID, sub.ID, buildHistory(faker, spec)); err != nil {
			return fmt.Errorf("history for %s: %w", spec.name, err)
		}
	}
	return nil
}

func buildResources(faker *gofakeit.Faker, spec subscriptionSpec) []subscriptions.ResourceRecord {
	out := make([]subscriptions.ResourceRecord, 0, spec.resources)
	remaining := spec.spend

	for i := 0; i < spec.resources; i++ {
		rtype := resourceTypes[i%len(resourceTypes)]
		cost := remaining / float64(spec.resources-i)
		// Jitter so resources are not uniformly priced.
		cost = math.Round(cost * faker.Float64Range(0.6, 1.4))
		if cost < 10 {
			cost = 10
		}
		remaining -= cost

		rec := subscriptions.ResourceRecord{
			Name:        fmt.Sprintf("%s-%s-%02d", shortType(rtype), faker.Word(), i+1),
			Type:        rtype,
			Region:      regions[faker.Number(0, len(regions)-1)],
			MonthlyCost: cost,
		}
		if rtype == "virtual_machine" || rtype == "kubernetes_cluster" {
			cpu := faker.Float64Range(4, 85)
			mem := faker.Float64Range(10, 90)
			rec.CPUUsagePct = &cpu
			rec.MemoryUsagePct = &mem
		}
		out = append(out, rec)
	}
	return out
}

func buildHistory(faker *gofakeit.Faker, spec subscriptionSpec) []subscriptions.CostPoint {
	base := spec.spend / float64(historyDays)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -historyDays)

	out := make([]subscriptions.CostPoint, 0, historyDays)
	for day := 0; day < historyDays; day++ {
		cost := base * faker.Float64Range(0.92, 1.08)
		switch spec.pattern {
		case patternGrowing:
			cost *= 1 + 0.015*float64(day)
		case patternSpiky:
			// A couple of pronounced spikes late in the window.
			if day == 19 || day == 26 {
				cost *= faker.Float64Range(1.8, 2.4)
			}
		}

		out = append(out, subscriptions.CostPoint{
			Date:      start.AddDate(0, 0, day).Format("2006-01-02"),
			TotalCost: math.Round(cost*100) / 100,
			Breakdown: map[string]float64{
				"compute": math.Round(cost*0.55*100) / 100,
				"storage": math.Round(cost*0.25*100) / 100,
				"network": math.Round(cost*0.20*100) / 100,
			},
		})
	}
	return out
}

func shortType(rtype string) string {
	switch rtype {
	case "virtual_machine":
		return "vm"
	case "database":
		return "db"
	case "storage_account":
		return "st"
	case "kubernetes_cluster":
		return "aks"
	case "app_service":
		return "app"
	default:
		return "res"
	}
}
