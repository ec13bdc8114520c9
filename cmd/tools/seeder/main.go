package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	if err := store.Migrate(dbURL); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	queries := store.New(pool)
	seedUsers(ctx, queries)
	seedProducts(ctx, queries)
	seedCoupons(ctx, queries)

	log.Println("Seeding completed")
}

func seedUsers(ctx context.Context, q *store.Store) {
	log.Println("Seeding users...")
	users := []struct {
		Name     string
		Email    string
		Password string
		Roles    []string
	}{
		{"Store Admin", "admin@campuskart.in", envOr("SEED_ADMIN_PASSWORD", "admin12345"), []string{"admin"}},
		{"Delivery Agent", "agent@campuskart.in", envOr("SEED_AGENT_PASSWORD", "agent12345"), []string{"agent"}},
		{"Priya Sharma", "priya@college.edu", "password123", []string{"customer"}},
		{"Rahul Verma", "rahul@college.edu", "password123", []string{"customer"}},
	}
	for _, u := range users {
		hash, err := argon2id.CreateHash(u.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("hash password for %s: %v", u.Email, err)
		}
		_, err = q.CreateUser(ctx, store.CreateUserParams{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Roles:        u.Roles,
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
	}
}

func seedProducts(ctx context.Context, q *store.Store) {
	log.Println("Seeding products...")
	products := []store.CreateProductParams{
		{
			Slug:               "scientific-calculator-fx991",
			Name:               "Scientific Calculator FX-991",
			Description:        "Non-programmable scientific calculator approved for exams.",
			Category:           "electronics",
			ImageURL:           "https://images.campuskart.in/products/fx991.jpg",
			BasePrice:          129900,
			OriginalPrice:      149900,
			StudentDiscountPct: int4(10),
			FacultyDiscountPct: int4(15),
			Stock:              120,
			Active:             true,
		},
		{
			Slug:               "engineering-drawing-kit",
			Name:               "Engineering Drawing Kit",
			Description:        "Complete drafting set with compass, set squares and scales.",
			Category:           "stationery",
			ImageURL:           "https://images.campuskart.in/products/drawing-kit.jpg",
			BasePrice:          64900,
			OriginalPrice:      79900,
			StudentDiscountPct: int4(15),
			Stock:              200,
			Active:             true,
		},
		{
			Slug:               "college-hoodie-navy",
			Name:               "College Hoodie Navy",
			Description:        "Official department hoodie, unisex sizing.",
			Category:           "apparel",
			ImageURL:           "https://images.campuskart.in/products/hoodie-navy.jpg",
			BasePrice:          99900,
			OriginalPrice:      99900,
			StudentDiscountPct: int4(5),
			FacultyDiscountPct: int4(5),
			Stock:              80,
			Active:             true,
		},
		{
			Slug:               "lab-coat-white",
			Name:               "Lab Coat White",
			Description:        "Knee-length cotton lab coat for chemistry and biology labs.",
			Category:           "apparel",
			ImageURL:           "https://images.campuskart.in/products/lab-coat.jpg",
			BasePrice:          54900,
			OriginalPrice:      64900,
			StudentDiscountPct: int4(10),
			Stock:              150,
			Active:             true,
		},
	}
	for _, p := range products {
		if _, err := q.CreateProduct(ctx, p); err != nil && !errors.Is(err, store.ErrDuplicate) {
			log.Fatalf("create product %s: %v", p.Slug, err)
		}
	}
}

func seedCoupons(ctx context.Context, q *store.Store) {
	log.Println("Seeding coupons...")
	now := time.Now()
	coupons := []store.CreateCouponParams{
		{
			Code:           "WELCOME10",
			Kind:           coupon.KindPercentage,
			Value:          10,
			MaxDiscount:    int8v(50000),
			MinOrderAmount: 50000,
			PerUserLimit:   int4(1),
			ApplicableFor:  coupon.ForFirstTimeBuyers,
			Active:         true,
			ValidFrom:      tstz(now),
			ValidTo:        tstz(now.AddDate(1, 0, 0)),
		},
		{
			Code:           "STUDENT15",
			Kind:           coupon.KindPercentage,
			Value:          15,
			MaxDiscount:    int8v(100000),
			MinOrderAmount: 100000,
			ApplicableFor:  coupon.ForStudents,
			Active:         true,
			ValidFrom:      tstz(now),
			ValidTo:        tstz(now.AddDate(0, 6, 0)),
		},
		{
			Code:           "FLAT50",
			Kind:           coupon.KindFixed,
			Value:          5000,
			MinOrderAmount: 150000,
			UsageLimit:     int4(500),
			ApplicableFor:  coupon.ForAll,
			Active:         true,
			ValidFrom:      tstz(now),
			ValidTo:        tstz(now.AddDate(0, 3, 0)),
		},
	}
	for _, c := range coupons {
		if _, err := q.CreateCoupon(ctx, c); err != nil && !errors.Is(err, store.ErrDuplicate) {
			log.Fatalf("create coupon %s: %v", c.Code, err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func int4(v int32) pgtype.Int4 {
	return pgtype.Int4{Int32: v, Valid: true}
}

func int8v(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}

func tstz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
