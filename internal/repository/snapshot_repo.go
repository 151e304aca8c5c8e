package repository

import (
	"strings"

	"github.com/pccr10001/mbpd/internal/model"
	"github.com/pccr10001/mbpd/internal/providers"
	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) AutoMigrate() error {
	return r.db.AutoMigrate(model.All()...)
}

// Replace swaps the stored snapshot for countries in one transaction.
func (r *SnapshotRepository) Replace(countries []*providers.CountryInfo) error {
	rows := make([]model.Country, 0, len(countries))
	for _, c := range countries {
		rows = append(rows, toCountry(c))
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.AccessMethod{}, &model.CDMASID{}, &model.NetworkID{}, &model.Provider{}, &model.Country{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 50).Error
	})
}

func (r *SnapshotRepository) CountProviders() (int64, error) {
	var count int64
	err := r.db.Model(&model.Provider{}).Count(&count).Error
	return count, err
}

func (r *SnapshotRepository) FindCountry(code string) (*model.Country, error) {
	var country model.Country
	err := r.db.
		Preload("Providers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Providers.Methods", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Providers.NetworkIDs").
		First(&country, "code = ?", strings.ToUpper(code)).Error
	return &country, err
}

// FindProvidersByMCC lists the providers holding at least one network ID
// in the mobile country mcc.
func (r *SnapshotRepository) FindProvidersByMCC(mcc string) ([]model.Provider, error) {
	var list []model.Provider
	sub := r.db.Model(&model.NetworkID{}).Select("provider_id").Where("mcc = ?", mcc)
	err := r.db.
		Preload("NetworkIDs").
		Preload("Methods", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id IN (?)", sub).
		Order("country_code, position").
		Find(&list).Error
	return list, err
}

func toCountry(c *providers.CountryInfo) model.Country {
	row := model.Country{Code: c.Code, Name: c.Name}
	for i, p := range c.Providers {
		prow := model.Provider{CountryCode: c.Code, Position: i, Name: p.Name}
		for _, id := range p.MCCMNC {
			prow.NetworkIDs = append(prow.NetworkIDs, model.NetworkID{MCC: id.MCC, MNC: id.MNC})
		}
		for _, sid := range p.CDMASID {
			prow.CDMASIDs = append(prow.CDMASIDs, model.CDMASID{SID: sid})
		}
		for j, m := range p.Methods {
			prow.Methods = append(prow.Methods, model.AccessMethod{
				Position: j,
				Family:   m.Family.String(),
				Name:     m.Name,
				APN:      m.APN,
				Username: m.Username,
				Password: m.Password,
				Gateway:  m.Gateway,
				DNS:      strings.Join(m.DNS, ","),
			})
		}
		row.Providers = append(row.Providers, prow)
	}
	return row
}
