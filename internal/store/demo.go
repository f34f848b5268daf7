package store

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/savegress/amldesk/pkg/models"
)

var (
	demoFirstNames = []string{"Alice", "Bruno", "Camille", "David", "Elodie", "Farid", "Gaëlle", "Hugo", "Inès", "Julien", "Karim", "Léa", "Mathis", "Nadia", "Olivier", "Pauline"}
	demoLastNames  = []string{"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand", "Leroy", "Moreau", "Simon", "Laurent", "Lefebvre", "Michel", "Garcia", "Roux"}
	demoCountries  = []string{"France", "Belgique", "Suisse", "Luxembourg", "Maroc", "Canada"}
	demoFunds      = []string{"Salaire", "Épargne", "Héritage", "Vente bien"}
	demoPayments   = []string{"Carte bancaire", "Virement bancaire", "PayPal", "Paysafecard"}
	demoProfession = []string{"Comptable", "Infirmier", "Développeur", "Commerçant", "Enseignant", "Retraité"}

	demoScoringLabels  = []string{"Multi-comptes", "Pays à risque", "Montants atypiques", "PEP", "Réputation"}
	demoBehaviorLabels = []string{
		"Multiples CB sur compte joueur",
		"Dépôts fractionnés",
		"Retraits rapides après dépôt",
		"Connexions régulières depuis IP à l’étranger",
	}
	demoAlertMessages = []string{
		"Dépôt inhabituel au regard du profil",
		"Changement de moyen de paiement répété",
		"Connexion depuis un pays à risque",
		"Retrait supérieur au seuil de vigilance",
	}
)

// DemoClients generates n deterministic synthetic clients for demos and
// load tests. Derived scores are left at zero; the store recomputes them.
func DemoClients(n int, seed int64, now time.Time) []*models.Client {
	rng := rand.New(rand.NewSource(seed))
	pick := func(list []string) string { return list[rng.Intn(len(list))] }

	out := make([]*models.Client, 0, n)
	for i := 0; i < n; i++ {
		c := &models.Client{
			ID:            fmt.Sprintf("CL%05d", i+1),
			FirstName:     pick(demoFirstNames),
			LastName:      pick(demoLastNames),
			BirthDate:     now.AddDate(-(18 + rng.Intn(72)), -rng.Intn(12), -rng.Intn(28)).Format("2006-01-02"),
			Country:       pick(demoCountries),
			Profession:    pick(demoProfession),
			FundsSource:   pick(demoFunds),
			PaymentMethod: pick(demoPayments),
			LastIP:        fmt.Sprintf("%d.%d.%d.%d", 1+rng.Intn(223), rng.Intn(256), rng.Intn(256), 1+rng.Intn(254)),
			KYCValidated:  rng.Intn(2) == 0,
			PEP:           rng.Intn(5) == 0,
			Status:        models.CaseStatusDefault,
			Comments:      []models.Comment{},
			BehaviorIndicators: models.BehaviorIndicators{
				RiskyGames:      rng.Intn(6),
				GameSpeed:       rng.Intn(201),
				LastIPChange:    rng.Intn(31),
				UnusualDevice:   rng.Intn(6),
				ThirdPartyPayer: rng.Intn(4),
			},
		}

		for _, label := range demoScoringLabels {
			c.ScoringDetails = append(c.ScoringDetails, models.ScoringDetail{Label: label, Value: rng.Intn(21)})
		}
		for j, label := range demoBehaviorLabels {
			limit := 6
			if j == len(demoBehaviorLabels)-1 {
				limit = 11
			}
			c.BehavioralDetails = append(c.BehavioralDetails, models.BehaviorDetail{Label: label, Value: rng.Intn(limit)})
		}
		for d := 0; d < 10; d++ {
			c.ScoreHistory = append(c.ScoreHistory, models.ScoreHistoryEntry{
				Date:  now.AddDate(0, 0, -d).Truncate(24 * time.Hour),
				Score: 60 + rng.Intn(41),
			})
		}
		for a := rng.Intn(4); a > 0; a-- {
			status := models.AlertStatusOpen
			if rng.Intn(2) == 0 {
				status = models.AlertStatusClosed
			}
			c.Alerts = append(c.Alerts, models.Alert{
				Date:    now.AddDate(0, 0, -rng.Intn(30)).Truncate(24 * time.Hour),
				Message: pick(demoAlertMessages),
				Status:  status,
			})
		}
		out = append(out, c)
	}
	return out
}
