package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	config "github.com/dancehub/marketplace/configs"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	// gen_random_uuid() lives in pgcrypto on Postgres < 13.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.Course{},
		&models.CourseSchedule{},
		&models.Booking{},
		&models.GiftCard{},
		&models.GiftCardTransaction{},
		&models.DiscountCard{},
		&models.DiscountCardUsage{},
		&models.TokenPackage{},
		&models.StudentTokenPackage{},
		&models.TokenTransaction{},
		&models.Offer{},
		&models.OfferOption{},
		&models.OfferPurchase{},
		&models.Payment{},
		&models.HelmetReservation{},
		&models.UserQRCode{},
		&models.Notification{},
		&models.CoachReferralActivity{},
		&models.CoachReferralStats{},
		&models.Setting{},
		&models.CheckoutData{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// SeedAdmin creates the admin account from ADMIN_EMAIL / ADMIN_PASSWORD when
// it does not exist yet.
func SeedAdmin(db *gorm.DB, log *logrus.Logger) error {
	adminEmail := strings.ToLower(config.Config("ADMIN_EMAIL"))
	adminPassword := config.Config("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Info("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	code, err := utils.GenerateUniqueReferralCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		var n int64
		err := db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error
		return n > 0, err
	})
	if err != nil {
		return fmt.Errorf("admin referral code: %w", err)
	}
	admin := models.User{
		FullName:     config.ConfigOr("ADMIN_FULL_NAME", "Administrator"),
		Email:        adminEmail,
		Password:     string(hashedPassword),
		Role:         models.RoleAdmin,
		ReferralCode: &code,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	log.WithField("email", adminEmail).Info("admin user seeded")
	return nil
}
