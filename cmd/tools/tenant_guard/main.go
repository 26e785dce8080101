package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// tenantGuard audits the documents table for rows in tenant-scoped
// collections that carry no shop.
// Exit code 0 = ok, 1 = violation, 2 = other error.
func main() {
	_ = godotenv.Load()
	exempt := flag.String("exempt", os.Getenv("STORE_EXEMPT_COLLECTIONS"), "comma separated collections without a shop")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "tenant_guard error: DATABASE_URL is not set")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tenant_guard error: %v\n", err)
		os.Exit(2)
	}
	defer pool.Close()

	violations, err := audit(ctx, pool, splitCSV(*exempt))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tenant_guard error: %v\n", err)
		os.Exit(2)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "VIOLATION: %s has %d documents without a shop\n", v.collection, v.count)
		}
		os.Exit(1)
	}
	fmt.Println("tenant_guard: OK")
}

type violation struct {
	collection string
	count      int64
}

func audit(ctx context.Context, pool *pgxpool.Pool, exempt []string) ([]violation, error) {
	rows, err := pool.Query(ctx, `
		SELECT collection, count(*)
		FROM documents
		WHERE coalesce(data->>'shop', '') = ''
		  AND NOT (collection = ANY($1))
		GROUP BY collection
		ORDER BY collection`, exempt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []violation
	for rows.Next() {
		var v violation
		if err := rows.Scan(&v.collection, &v.count); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func splitCSV(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
