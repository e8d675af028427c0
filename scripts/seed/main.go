// Command seed loads a development dataset: one admin, one instructor
// with a Monday-Friday schedule, and one student. Idempotent per email.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
	"github.com/mvdeventer/drive-alive-api/pkg/database"
)

type seedUser struct {
	email    string
	password string
	fullName string
	role     models.UserRole
}

var seedUsers = []seedUser{
	{"admin@drive-alive.local", "admin123", "Admin", models.RoleAdmin},
	{"instructor@drive-alive.local", "instructor123", "Mark van Deventer", models.RoleInstructor},
	{"student@drive-alive.local", "student123", "Thandi Nkosi", models.RoleStudent},
}

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "run migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if migrate {
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	var instructorID string
	for _, u := range seedUsers {
		id, err := upsertUser(ctx, db, u)
		if err != nil {
			log.Fatalf("failed to seed %s: %v", u.email, err)
		}
		if u.role == models.RoleInstructor {
			instructorID = id
		}
		log.Printf("seeded %s (%s)", u.email, u.role)
	}

	if err := seedSchedule(ctx, db, instructorID); err != nil {
		log.Fatalf("failed to seed schedule: %v", err)
	}
	log.Printf("seeded Monday-Friday 08:00-17:00 schedule for instructor %s", instructorID)
}

func upsertUser(ctx context.Context, db *sqlx.DB, u seedUser) (string, error) {
	var id string
	err := db.GetContext(ctx, &id, `SELECT id FROM users WHERE email = $1`, u.email)
	if err == nil {
		return id, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	id = uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, active) VALUES ($1, $2, $3, $4, $5, TRUE)`,
		id, u.email, string(hash), u.fullName, u.role)
	if err != nil {
		return "", err
	}
	return id, nil
}

func seedSchedule(ctx context.Context, db *sqlx.DB, instructorID string) error {
	for dow := int(time.Monday); dow <= int(time.Friday); dow++ {
		_, err := db.ExecContext(ctx,
			`INSERT INTO weekly_schedules (instructor_id, day_of_week, start_minute, end_minute, is_active)
			 VALUES ($1, $2, $3, $4, TRUE)
			 ON CONFLICT (instructor_id, day_of_week) DO NOTHING`,
			instructorID, dow, 8*60, 17*60)
		if err != nil {
			return err
		}
	}
	return nil
}
