// The create-admin binary inserts (or resets the password of) an admin
// account. Usage: create-admin -username admin -password <plaintext>
package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"

	_ "github.com/lib/pq"

	"github.com/insurancepro/marketing/internal/auth"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "", "admin password (required)")
	email := flag.String("email", "", "admin email")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO admins (id, username, email, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, is_active = true
	`, uuid.New().String(), *username, *email, hash)
	if err != nil {
		log.Fatalf("upsert admin: %v", err)
	}

	log.Printf("Admin account %q is ready", *username)
}
