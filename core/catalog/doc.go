// Package catalog holds the static fleet of heat sources used for a run
// together with the CO2 budget and the co-generation priority policy. A
// Catalog is validated once at construction and is read-only afterwards, so
// it can be shared by concurrent allocations.
package catalog
