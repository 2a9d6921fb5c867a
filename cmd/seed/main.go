package main

import (
	"log"
	"os"

	"algo-collab-be/internal/model"
	"algo-collab-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Seeds a handful of users and a demo project so a fresh environment
// has something to open a session against.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo users...")

	users := []model.User{
		{Email: "alice@example.com", Username: "alice", DisplayName: "Alice Hartono", Role: "admin"},
		{Email: "bob@example.com", Username: "bob", DisplayName: "Bob Prasetyo", Role: "user"},
		{Email: "carol@example.com", Username: "carol", DisplayName: "Carol Wijaya", Role: "user"},
	}

	var owner uuid.UUID
	for _, u := range users {
		var existing model.User
		if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			log.Printf("User '%s' already exists, skipping...", u.Username)
			if owner == uuid.Nil {
				owner = existing.Id
			}
			continue
		}

		if err := db.Create(&u).Error; err != nil {
			log.Fatalf("Error: Failed to seed user '%s': %v", u.Username, err)
		}
		if owner == uuid.Nil {
			owner = u.Id
		}
		log.Printf("Seeded user '%s'", u.Username)
	}

	log.Println("Seeding demo project...")

	project := model.Project{Name: "demo-algorithms", OwnerId: owner, Visibility: "private"}
	var existing model.Project
	if err := db.Where("name = ? AND owner_id = ?", project.Name, owner).First(&existing).Error; err == nil {
		log.Println("Demo project already exists, skipping...")
	} else if err := db.Create(&project).Error; err != nil {
		log.Fatalf("Error: Failed to seed project: %v", err)
	} else {
		log.Printf("Seeded project '%s' (%s)", project.Name, project.Id)
	}

	log.Println("✅ Success: Seeding completed.")
}
