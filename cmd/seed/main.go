package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/zhortlabs/zhort/internal/db"
	"github.com/zhortlabs/zhort/internal/models"
)

type seedLink struct {
	code string
	dest string
	// weight controls relative click volume (higher = more clicks)
	weight float64
}

var links = []seedLink{
	{"launch", "https://zhort.example/blog/launch", 5.0},
	{"docs", "https://docs.zhort.example", 4.5},
	{"pricing", "https://zhort.example/pricing", 4.0},
	{"github", "https://github.com/zhortlabs/zhort", 3.5},
	{"blog", "https://zhort.example/blog", 3.0},
	{"status", "https://status.zhort.example", 2.0},
	{"careers", "https://zhort.example/careers", 1.5},
	{"newsletter", "https://zhort.example/newsletter", 1.2},
}

var referrers = []struct {
	domain string
	weight float64
}{
	{"google.com", 30},
	{"", 20}, // direct traffic
	{"github.com", 15},
	{"twitter.com", 8},
	{"reddit.com", 7},
	{"news.ycombinator.com", 5},
	{"linkedin.com", 4},
	{"producthunt.com", 2},
}

var countries = []struct {
	country string
	weight  float64
}{
	{"US", 25}, {"IN", 20}, {"DE", 8}, {"GB", 7}, {"BR", 6},
	{"FR", 5}, {"CA", 4}, {"AU", 3}, {"JP", 3}, {"NL", 2},
}

var browsers = []struct {
	name   string
	weight float64
}{
	{"Chrome", 55}, {"Firefox", 17}, {"Safari", 17}, {"Edge", 8}, {"Opera", 3},
}

var oses = []struct {
	name   string
	weight float64
}{
	{"Windows", 35}, {"macOS", 25}, {"Linux", 15}, {"Android", 15}, {"iOS", 10},
}

var deviceTypes = []struct {
	name   string
	weight float64
}{
	{"desktop", 65}, {"mobile", 30}, {"tablet", 5},
}

func pick[T any](rng *rand.Rand, weights []float64, values []T) T {
	var total float64
	for _, w := range weights {
		total += w
	}
	v := rng.Float64() * total
	for i, w := range weights {
		v -= w
		if v <= 0 {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func main() {
	dbPath := os.Getenv("ZHORT_DB_PATH")
	if dbPath == "" {
		dbPath = "./zhort.db"
	}

	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	rng := rand.New(rand.NewSource(42)) // deterministic seed
	now := time.Now().UTC()
	threeMonthsAgo := now.AddDate(0, -3, 0)

	team := &models.Team{Name: "zhort-demo", QuotaLimit: 0}
	if err := models.CreateTeam(database, team); err != nil {
		log.Fatalf("create team: %v", err)
	}

	fmt.Println("Seeding links...")

	ownerID := int64(1)
	created := make([]models.Link, 0, len(links))
	for i, sl := range links {
		createdAt := threeMonthsAgo.Add(time.Duration(i*3) * 24 * time.Hour)

		link := models.Link{
			Code:        sl.code,
			Destination: sl.dest,
			OwnerID:     &ownerID,
			TeamID:      &team.ID,
			IsPublic:    true,
		}
		if err := models.CreateLink(database, &link); err != nil {
			log.Fatalf("create link %q: %v", sl.code, err)
		}
		if _, err := database.Exec(
			`UPDATE links SET created_at = ?, updated_at = ? WHERE id = ?`,
			createdAt, createdAt, link.ID,
		); err != nil {
			log.Fatalf("backdate link %q: %v", sl.code, err)
		}
		link.CreatedAt = createdAt
		created = append(created, link)
		fmt.Printf("  [%2d] /%s -> %s\n", link.ID, sl.code, sl.dest)
	}

	// A/B test on the launch link.
	launch := created[0]
	for _, v := range []models.Variant{
		{LinkID: launch.ID, TargetURL: "https://zhort.example/blog/launch?hero=video", Percentage: 50},
		{LinkID: launch.ID, TargetURL: "https://zhort.example/blog/launch?hero=static", Percentage: 50},
	} {
		v := v
		if err := models.CreateVariant(database, &v); err != nil {
			log.Fatalf("create variant: %v", err)
		}
	}

	// Device and geo routing on the docs link.
	docs := created[1]
	for _, r := range []models.RedirectRule{
		{LinkID: docs.ID, RuleType: models.RuleDevice, Condition: "mobile", TargetURL: "https://m.docs.zhort.example", Priority: 1},
		{LinkID: docs.ID, RuleType: models.RuleGeo, Condition: "DE", TargetURL: "https://docs.zhort.example/de", Priority: 2},
	} {
		r := r
		if err := models.CreateRule(database, &r); err != nil {
			log.Fatalf("create rule: %v", err)
		}
	}

	// Limited-time careers page with a fallback once closed.
	until := now.AddDate(0, 1, 0)
	if err := models.CreateSchedule(database, &models.Schedule{
		LinkID:      created[6].ID,
		ActiveUntil: &until,
		Timezone:    "UTC",
		FallbackURL: "https://zhort.example/careers/closed",
		IsActive:    true,
	}); err != nil {
		log.Fatalf("create schedule: %v", err)
	}

	if err := models.CreateWebhook(database, &models.Webhook{
		OwnerID:  ownerID,
		URL:      "https://hooks.zhort.example/demo",
		Secret:   "whsec_demo",
		Events:   []string{models.EventLinkCreated, models.EventLinkClicked},
		IsActive: true,
	}); err != nil {
		log.Fatalf("create webhook: %v", err)
	}

	fmt.Println("\nGenerating clicks...")

	refWeights := make([]float64, len(referrers))
	refValues := make([]string, len(referrers))
	for i, r := range referrers {
		refWeights[i], refValues[i] = r.weight, r.domain
	}
	countryWeights := make([]float64, len(countries))
	countryValues := make([]string, len(countries))
	for i, c := range countries {
		countryWeights[i], countryValues[i] = c.weight, c.country
	}
	browserWeights := make([]float64, len(browsers))
	browserValues := make([]string, len(browsers))
	for i, b := range browsers {
		browserWeights[i], browserValues[i] = b.weight, b.name
	}
	osWeights := make([]float64, len(oses))
	osValues := make([]string, len(oses))
	for i, o := range oses {
		osWeights[i], osValues[i] = o.weight, o.name
	}
	deviceWeights := make([]float64, len(deviceTypes))
	deviceValues := make([]string, len(deviceTypes))
	for i, d := range deviceTypes {
		deviceWeights[i], deviceValues[i] = d.weight, d.name
	}

	totalClicks := 0
	for i, sl := range links {
		link := created[i]
		baseClicksPerDay := sl.weight * 6

		var facts []models.Click
		for day := link.CreatedAt; day.Before(now); day = day.Add(24 * time.Hour) {
			dayVariance := 0.6 + rng.Float64()*0.8
			weekdayFactor := 1.0
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				weekdayFactor = 0.4
			}
			clicksThisDay := int(baseClicksPerDay * dayVariance * weekdayFactor)

			for j := 0; j < clicksThisDay; j++ {
				hour := rng.NormFloat64()*4 + 14 // center around 2pm UTC
				if hour < 0 {
					hour = 0
				}
				if hour >= 24 {
					hour = 23
				}
				at := day.Add(time.Duration(hour*float64(time.Hour))).Add(time.Duration(rng.Intn(3600)) * time.Second)
				if at.After(now) {
					continue
				}

				ref := pick(rng, refWeights, refValues)
				referer := ""
				if ref != "" {
					referer = "https://" + ref + "/"
				}

				facts = append(facts, models.Click{
					LinkID:        link.ID,
					ClickedAt:     at,
					IP:            fmt.Sprintf("203.0.113.%d", rng.Intn(254)+1),
					Referer:       referer,
					RefererDomain: ref,
					Country:       pick(rng, countryWeights, countryValues),
					Browser:       pick(rng, browserWeights, browserValues),
					OS:            pick(rng, osWeights, osValues),
					DeviceType:    pick(rng, deviceWeights, deviceValues),
				})
			}
		}

		if err := models.BatchInsertClicks(database, facts); err != nil {
			log.Fatalf("insert clicks for %q: %v", sl.code, err)
		}
		if _, err := database.Exec(
			`UPDATE links SET hit_count = ? WHERE id = ?`, len(facts), link.ID,
		); err != nil {
			log.Fatalf("set hit count for %q: %v", sl.code, err)
		}
		totalClicks += len(facts)
		fmt.Printf("  /%s: %d clicks\n", sl.code, len(facts))
	}

	fmt.Printf("\nSeeded %d links and %d clicks into %s\n", len(created), totalClicks, dbPath)
}
