package storage

import (
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/geo"
)

func venueToModel(v domain.Venue) VenueModel {
	activities := "[]"
	if len(v.Activities) > 0 {
		if b, err := json.Marshal(v.Activities); err == nil {
			activities = string(b)
		}
	}
	return VenueModel{
		ID:           v.ID,
		Name:         v.Name,
		Description:  v.Description,
		Latitude:     v.Coordinates.Latitude,
		Longitude:    v.Coordinates.Longitude,
		ImageURL:     v.ImageURL,
		EntryPrice:   v.EntryPrice,
		ActivityType: v.ActivityType,
		Activities:   activities,
		CreatedAt:    v.CreatedAt,
		CreatedBy:    v.CreatedBy,
	}
}

func venueToDomain(m VenueModel) domain.Venue {
	activities := make([]string, 0)
	if m.Activities != "" {
		if err := json.Unmarshal([]byte(m.Activities), &activities); err != nil {
			slog.Warn("corrupt venue activities", "venue_id", m.ID, "error", err)
		}
	}
	return domain.Venue{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Coordinates:  geo.Location{Latitude: m.Latitude, Longitude: m.Longitude},
		ImageURL:     m.ImageURL,
		EntryPrice:   m.EntryPrice,
		ActivityType: m.ActivityType,
		Activities:   activities,
		CreatedAt:    m.CreatedAt,
		CreatedBy:    m.CreatedBy,
	}
}

func messageToModel(m domain.ChatMessage) MessageModel {
	return MessageModel{
		ID:              m.ID,
		VenueID:         m.VenueID,
		UserID:          m.UserID,
		UserDisplayName: m.UserDisplayName,
		Message:         m.Message,
		Timestamp:       m.Timestamp,
	}
}

func messageToDomain(m MessageModel) domain.ChatMessage {
	return domain.ChatMessage{
		ID:              m.ID,
		VenueID:         m.VenueID,
		UserID:          m.UserID,
		UserDisplayName: m.UserDisplayName,
		Message:         m.Message,
		Timestamp:       m.Timestamp,
	}
}

func userToDomain(m UserModel) domain.User {
	u := domain.User{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        domain.Role(m.Role),
		CreatedAt:   m.CreatedAt,
		LastLogin:   m.LastLogin,
	}
	if m.HasLocation {
		u.Location = &geo.Location{Latitude: m.Latitude, Longitude: m.Longitude}
		u.LastLocationUpdate = m.LastLocationUpdate
	}
	return u
}

func userToRecord(m UserModel) domain.LocationRecord {
	return domain.LocationRecord{
		UserID:      m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Location:    geo.Location{Latitude: m.Latitude, Longitude: m.Longitude},
		UpdatedAt:   m.LastLocationUpdate,
	}
}

func auditToModel(l domain.AuditLog) AuditModel {
	return AuditModel{
		ID:        l.ID,
		UserID:    l.UserID,
		Username:  l.Username,
		Action:    string(l.Action),
		Target:    l.Target,
		Details:   l.Details,
		IPAddress: l.IPAddress,
		Timestamp: l.Timestamp,
	}
}

func auditToDomain(m AuditModel) domain.AuditLog {
	return domain.AuditLog{
		ID:        m.ID,
		UserID:    m.UserID,
		Username:  m.Username,
		Action:    domain.AuditAction(m.Action),
		Target:    m.Target,
		Details:   m.Details,
		IPAddress: m.IPAddress,
		Timestamp: m.Timestamp,
	}
}
