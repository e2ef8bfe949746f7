// Package testutil builds small travel databases for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// LatestDeparture is the maximum valid flights.actual_departure in the fixture.
const LatestDeparture = "2024-05-03 17:21:00.000000-04:00"

var travelSchema = []string{
	`CREATE TABLE flights (
		flight_id INTEGER PRIMARY KEY,
		flight_no TEXT,
		scheduled_departure TIMESTAMP,
		scheduled_arrival TIMESTAMP,
		departure_airport TEXT,
		arrival_airport TEXT,
		status TEXT,
		actual_departure TIMESTAMP,
		actual_arrival TIMESTAMP
	)`,
	`CREATE TABLE bookings (
		book_ref TEXT,
		book_date TIMESTAMP,
		total_amount INTEGER
	)`,
	`CREATE TABLE car_rentals (
		id INTEGER PRIMARY KEY,
		name TEXT,
		location TEXT,
		price_tier TEXT,
		start_date TEXT,
		end_date TEXT,
		booked INTEGER
	)`,
	`CREATE TABLE hotels (
		id INTEGER PRIMARY KEY,
		name TEXT,
		location TEXT,
		price_tier TEXT,
		checkin_date TEXT,
		checkout_date TEXT,
		booked INTEGER
	)`,
	`CREATE TABLE trip_recommendations (
		id INTEGER PRIMARY KEY,
		name TEXT,
		location TEXT,
		keywords TEXT,
		details TEXT,
		booked INTEGER
	)`,
}

var travelSeed = []string{
	`INSERT INTO flights VALUES
		(1, 'LX0112', '2024-04-28 08:05:00.000000-04:00', '2024-04-28 09:35:00.000000-04:00', 'BSL', 'ZRH', 'Arrived', '2024-04-28 08:07:00.000000-04:00', '2024-04-28 09:40:00.000000-04:00'),
		(2, 'LX0113', '2024-05-03 17:15:00.000000-04:00', '2024-05-03 18:45:00.000000-04:00', 'ZRH', 'BSL', 'Arrived', '2024-05-03 17:21:00.000000-04:00', '2024-05-03 18:50:00.000000-04:00'),
		(3, 'LX0114', '2024-05-10 10:00:00-04', '2024-05-10 11:30:00-04', 'BSL', 'GVA', 'Scheduled', '\N', NULL)`,
	`INSERT INTO bookings VALUES
		('06B046', '2024-04-20 09:05:00.000000-04:00', 12400),
		('0A8DA2', '2024-04-25T13:12:00Z', 8500)`,
	`INSERT INTO car_rentals VALUES
		(1, 'Europcar', 'Basel', 'Economy', '2024-04-14', '2024-04-11', 0),
		(2, 'Avis', 'Basel', 'Luxury', '2024-04-10', '2024-04-20', 0),
		(3, 'Hertz', 'Zurich', 'Midsize', '2024-04-10', '2024-04-07', 0),
		(4, 'Sixt', 'Bern', 'Midsize', '2024-04-20', '2024-04-26', 0),
		(5, 'Hertz', 'Basel', 'Luxury', '2024-04-05', '2024-04-06', 0)`,
	`INSERT INTO hotels VALUES
		(1, 'Hilton Basel', 'Basel', 'Luxury', '2024-04-22', '2024-04-20', 0),
		(2, 'Marriott Zurich', 'Zurich', 'Upscale', '2024-04-14', '2024-04-21', 0),
		(3, 'Hyatt Regency Basel', 'Basel', 'Upper Upscale', '2024-04-02', '2024-04-20', 0),
		(4, 'Radisson Blu Lucerne', 'Lucerne', 'Midscale', '2024-04-24', '2024-04-05', 0)`,
	`INSERT INTO trip_recommendations VALUES
		(1, 'Basel Minster', 'Basel', 'landmark, history', 'Visit the historic Basel Minster.', 0),
		(2, 'Kunstmuseum Basel', 'Basel', 'art, museum', 'Explore the largest art museum in Switzerland.', 0),
		(3, 'Zurich Old Town', 'Zurich', 'history, architecture', 'Walk the narrow lanes of the old town.', 0),
		(4, 'Lucerne Chapel Bridge', 'Lucerne', 'landmark, history', 'Cross the covered wooden footbridge.', 0),
		(5, 'Swiss National Museum', 'Zurich', 'museum, history', 'Swiss cultural history in one place.', 0)`,
}

// SeedTravelDB creates the travel schema and sample rows in db.
func SeedTravelDB(db *sql.DB) error {
	for _, stmt := range append(append([]string{}, travelSchema...), travelSeed...) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteTravelDB writes a seeded travel database to dir/name and returns its path.
func WriteTravelDB(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	if err := SeedTravelDB(db); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	return path
}

// DumpColumn returns the text of table.column ordered by rowid. NULL reads as "<nil>".
func DumpColumn(t testing.TB, db *sql.DB, table, column string) []string {
	t.Helper()

	rows, err := db.Query(`SELECT CAST("` + column + `" AS TEXT) FROM "` + table + `" ORDER BY rowid`)
	if err != nil {
		t.Fatalf("dump %s.%s: %v", table, column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan %s.%s: %v", table, column, err)
		}
		if !v.Valid {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, v.String)
	}
	return out
}
