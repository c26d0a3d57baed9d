package config

import (
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDatabase opens the Postgres connection backing the client
// registry, embedding store and LSH index.
func ConnectDatabase() (*gorm.DB, error) {
	host := GetEnv("DB_HOST", "postgres")
	port := GetEnv("DB_PORT", "5432")
	user := GetEnv("DB_USER", "securesearch")
	password := GetSecret("DB_PASSWORD", "")
	dbname := GetEnv("DB_NAME", "securesearch")
	sslmode := GetEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") == "development" {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Ciphertext rows run larger than plaintext embeddings would, and
	// homomorphic inner products hold connections open longer, so the
	// pool stays smaller than a typical CRUD service's.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(GetEnvAsInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
