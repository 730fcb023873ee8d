// Package catalog provides typed access to the marketplace list endpoints
// (services, specialists, teams, orders). All endpoints share the same
// paginated envelope and can feed an Accumulator via feed.PageFetcher.
package catalog

import (
	"strconv"
	"time"
)

// Service is a marketplace service listing.
type Service struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CategoryID  int64   `json:"categoryId"`
	PriceFrom   float64 `json:"priceFrom"`
	Currency    string  `json:"currency"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Specialist is an individual provider profile.
type Specialist struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Profession string   `json:"profession"`
	Rating     float64  `json:"rating"`
	Reviews    int      `json:"reviews"`
	ServiceIDs []int64  `json:"serviceIds,omitempty"`
	City       string   `json:"city,omitempty"`
	AvatarURL  string   `json:"avatarUrl,omitempty"`
	Verified   bool     `json:"verified"`
	Badges     []string `json:"badges,omitempty"`
}

// Team is a group of specialists offering services together.
type Team struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	MemberCount int     `json:"memberCount"`
	Rating      float64 `json:"rating"`
	City        string  `json:"city,omitempty"`
	LogoURL     string  `json:"logoUrl,omitempty"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a placed customer order.
type Order struct {
	ID           int64       `json:"id"`
	ServiceID    int64       `json:"serviceId"`
	SpecialistID int64       `json:"specialistId,omitempty"`
	Status       OrderStatus `json:"status"`
	Title        string      `json:"title"`
	Price        float64     `json:"price"`
	Currency     string      `json:"currency"`
	CreatedAt    time.Time   `json:"createdAt"`
	ScheduledAt  *time.Time  `json:"scheduledAt,omitempty"`
}

// Key functions for feed deduplication.

// ServiceKey returns the dedup key for a service item.
func ServiceKey(s Service) string { return strconv.FormatInt(s.ID, 10) }

// SpecialistKey returns the dedup key for a specialist item.
func SpecialistKey(s Specialist) string { return strconv.FormatInt(s.ID, 10) }

// TeamKey returns the dedup key for a team item.
func TeamKey(t Team) string { return strconv.FormatInt(t.ID, 10) }

// OrderKey returns the dedup key for an order item.
func OrderKey(o Order) string { return strconv.FormatInt(o.ID, 10) }
