package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"equiplend/internal/config"
	"equiplend/internal/database"
	"equiplend/internal/domain"
	"equiplend/internal/pkg/jwt"
	"equiplend/internal/repository"
)

var catalogue = []domain.Equipment{
	{Name: "Canon EOS R5", Model: "R5", Category: "camera", Description: "45MP full-frame mirrorless body"},
	{Name: "Sony A7 IV", Model: "ILCE-7M4", Category: "camera", Description: "33MP full-frame mirrorless body"},
	{Name: "Sigma 24-70mm f/2.8", Model: "DG DN Art", Category: "lens"},
	{Name: "Rode NTG3", Model: "NTG3", Category: "audio", Description: "Shotgun microphone"},
	{Name: "Zoom H6", Model: "H6", Category: "audio", Description: "Six-track field recorder"},
	{Name: "Aputure 300d II", Model: "LS C300d II", Category: "lighting"},
	{Name: "DJI RS 3", Model: "RS3", Category: "stabilizer"},
	{Name: "Manfrotto 055", Model: "MT055XPRO3", Category: "tripod"},
}

func main() {
	printTokens := flag.Bool("print-tokens", false, "print dev JWTs for a user and an admin")
	clean := flag.Bool("clean", false, "delete existing bookings and equipment first")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.App.IsProdLike() {
		log.Fatal("seed is for local environments only")
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	ctx := context.Background()
	log.Println("Running migrations...")
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrations failed:", err)
	}

	if *clean {
		log.Println("Cleaning old data...")
		if err := db.Exec("DELETE FROM bookings").Error; err != nil {
			log.Fatal(err)
		}
		if err := db.Exec("DELETE FROM equipment").Error; err != nil {
			log.Fatal(err)
		}
	}

	repo := repository.NewEquipmentRepository(db)
	existing, err := repo.List(ctx, repository.EquipmentFilter{Limit: 1})
	if err != nil {
		log.Fatal(err)
	}
	if len(existing) > 0 {
		log.Println("Equipment already present, skipping catalogue")
	} else {
		log.Println("Creating equipment...")
		for i := range catalogue {
			e := catalogue[i]
			if err := repo.Create(ctx, &e); err != nil {
				log.Fatalf("create %s: %v", e.Name, err)
			}
			log.Printf("  #%d %s", e.ID, e.Name)
		}
	}

	if *printTokens {
		issuer := jwt.New(cfg.JWT.Secret, cfg.JWT.TTL)
		for _, id := range []jwt.Identity{
			{UserID: 1, Role: string(domain.RoleAdmin), Name: "Lab Admin", Email: "admin@equiplend.local"},
			{UserID: 2, Role: string(domain.RoleUser), Name: "Student One", Email: "student1@equiplend.local"},
			{UserID: 3, Role: string(domain.RoleUser), Name: "Student Two", Email: "student2@equiplend.local"},
		} {
			tok, err := issuer.GenerateToken(id)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("%s (%s, id=%d):\n%s\n\n", id.Name, id.Role, id.UserID, tok)
		}
	}

	log.Println("Seed completed")
}
