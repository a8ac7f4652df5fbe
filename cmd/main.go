package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/api"
	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/db"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.User{}:               "User",
		&models.Counselor{}:          "Counselor",
		&models.AvailabilityRule{}:   "AvailabilityRule",
		&models.Appointment{}:        "Appointment",
		&models.ForumPost{}:          "ForumPost",
		&models.ForumComment{}:       "ForumComment",
		&models.JournalEntry{}:       "JournalEntry",
		&models.Chat{}:               "Chat",
		&models.LiveChatMessage{}:    "LiveChatMessage",
		&models.Device{}:             "Device",
		&models.PasswordResetToken{}: "PasswordResetToken",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	log.Println("All migrations completed successfully")
	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	// Leaf tables first, mirroring cascade order.
	tables := []interface{}{
		&models.LiveChatMessage{},
		&models.ForumComment{},
		&models.Appointment{},
		&models.ForumPost{},
		&models.JournalEntry{},
		&models.Chat{},
		&models.Device{},
		&models.PasswordResetToken{},
		&models.AvailabilityRule{},
		&models.Counselor{},
		&models.User{},
	}

	log.Println("Dropping tables...")
	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	log.Println("Database cleared successfully")
}
