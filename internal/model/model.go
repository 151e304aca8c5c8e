package model

import (
	"time"
)

// Snapshot rows mirror the in-memory provider table so other services can
// query it with SQL.

type Country struct {
	Code      string     `gorm:"primaryKey;size:2" json:"code"`
	Name      string     `json:"name"`
	Providers []Provider `gorm:"foreignKey:CountryCode;references:Code;constraint:OnDelete:CASCADE" json:"providers,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Provider struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CountryCode string         `gorm:"index;not null;size:2" json:"country_code"`
	Position    int            `json:"position"` // document order within the country
	Name        string         `gorm:"index" json:"name"`
	NetworkIDs  []NetworkID    `gorm:"constraint:OnDelete:CASCADE" json:"network_ids,omitempty"`
	CDMASIDs    []CDMASID      `gorm:"constraint:OnDelete:CASCADE" json:"cdma_sids,omitempty"`
	Methods     []AccessMethod `gorm:"constraint:OnDelete:CASCADE" json:"methods,omitempty"`
}

type NetworkID struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	ProviderID uint   `gorm:"index;not null" json:"-"`
	MCC        string `gorm:"index;size:3;column:mcc" json:"mcc"`
	MNC        string `gorm:"size:3;column:mnc" json:"mnc"`
}

type CDMASID struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	ProviderID uint   `gorm:"index;not null" json:"-"`
	SID        uint32 `gorm:"index;column:sid" json:"sid"`
}

type AccessMethod struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	ProviderID uint   `gorm:"index;not null" json:"-"`
	Position   int    `json:"position"`
	Family     string `json:"family"` // gsm, cdma
	Name       string `json:"name"`
	APN        string `gorm:"column:apn" json:"apn,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	DNS        string `gorm:"column:dns" json:"dns,omitempty"` // Comma separated
}

func All() []interface{} {
	return []interface{}{&Country{}, &Provider{}, &NetworkID{}, &CDMASID{}, &AccessMethod{}}
}
