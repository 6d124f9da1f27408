package main

import (
	"log"

	"github.com/ledgersync/ledgersync/app/models"
	"github.com/ledgersync/ledgersync/internal/pkg/database"
	"github.com/ledgersync/ledgersync/internal/pkg/env"
	"gorm.io/gorm/clause"
)

// Seeds the default plan mappings and a few free demo accounts. Safe to run
// repeatedly; existing rows are left untouched.
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()

	mappings := []models.PlanMapping{
		{PriceID: env.GetEnv("PRICE_ID_TOKENS_STARTER", "price_tokens_starter"), InternalPlan: "starter", Kind: models.PlanKindOneTime, TokenGrant: 100},
		{PriceID: env.GetEnv("PRICE_ID_TOKENS_PLUS", "price_tokens_plus"), InternalPlan: "plus", Kind: models.PlanKindOneTime, TokenGrant: 500},
		{PriceID: env.GetEnv("PRICE_ID_TOKENS_UNLIMITED", "price_tokens_unlimited"), InternalPlan: "unlimited", Kind: models.PlanKindOneTime, TokenGrant: models.TokenUnlimited},
		{PriceID: env.GetEnv("PRICE_ID_SUBSCRIBER", "price_subscriber_basic"), InternalPlan: "subscriber-basic", Kind: models.PlanKindSubscription},
		{PriceID: env.GetEnv("PRICE_ID_SUBSCRIBER_PRO", "price_subscriber_pro"), InternalPlan: "subscriber-pro", Kind: models.PlanKindSubscription},
	}
	for i := range mappings {
		mappings[i].IsActive = true
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "price_id"}},
		DoNothing: true,
	}).Create(&mappings).Error; err != nil {
		log.Fatalf("Failed to seed plan mappings: %v", err)
	}

	accounts := []models.Account{
		{Email: "user1@example.com", AccountType: models.AccountTypeFree},
		{Email: "user2@example.com", AccountType: models.AccountTypeFree},
		{Email: "user3@example.com", AccountType: models.AccountTypeFree},
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&accounts).Error; err != nil {
		log.Fatalf("Failed to seed accounts: %v", err)
	}

	log.Println("Seed data inserted successfully")
}
