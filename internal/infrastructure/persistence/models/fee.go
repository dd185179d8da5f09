package models

import (
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MasterFeeModel is the persistence model for the MasterFee aggregate root.
type MasterFeeModel struct {
	AggregateModel
	PaymentStructure fee.PaymentStructure `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (MasterFeeModel) TableName() string {
	return "master_fees"
}

// ToDomain converts the persistence model to a domain MasterFee.
func (m *MasterFeeModel) ToDomain() *fee.MasterFee {
	return &fee.MasterFee{
		BaseAggregateRoot: m.ToAggregateRoot(),
		PaymentStructure:  m.PaymentStructure,
	}
}

// FromDomain populates the persistence model from a domain MasterFee.
func (m *MasterFeeModel) FromDomain(mf *fee.MasterFee) {
	m.FromDomainAggregateRoot(mf.BaseAggregateRoot)
	m.PaymentStructure = mf.PaymentStructure
}

// FeeStructureModel is the persistence model for the FeeStructure aggregate root.
type FeeStructureModel struct {
	AggregateModel
	MasterFeeID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	FeeType      fee.FeeType     `gorm:"type:varchar(30);not null"`
	FeeAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	YearLevelIDs Int64List       `gorm:"column:year_level_ids;type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (FeeStructureModel) TableName() string {
	return "fee_structures"
}

// ToDomain converts the persistence model to a domain FeeStructure.
func (m *FeeStructureModel) ToDomain() *fee.FeeStructure {
	ids := make([]int64, len(m.YearLevelIDs))
	copy(ids, m.YearLevelIDs)
	return &fee.FeeStructure{
		BaseAggregateRoot: m.ToAggregateRoot(),
		MasterFeeID:       m.MasterFeeID,
		FeeType:           m.FeeType,
		FeeAmount:         m.FeeAmount,
		YearLevelIDs:      ids,
	}
}

// FromDomain populates the persistence model from a domain FeeStructure.
func (m *FeeStructureModel) FromDomain(f *fee.FeeStructure) {
	m.FromDomainAggregateRoot(f.BaseAggregateRoot)
	m.MasterFeeID = f.MasterFeeID
	m.FeeType = f.FeeType
	m.FeeAmount = f.FeeAmount
	m.YearLevelIDs = Int64List(f.YearLevelIDs)
}

// AppliedFeeDiscountModel is the persistence model for AppliedFeeDiscount.
type AppliedFeeDiscountModel struct {
	AggregateModel
	StudentYearID  int64           `gorm:"not null;uniqueIndex:idx_discount_student_structure,priority:1"`
	FeeStructureID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_discount_student_structure,priority:2"`
	DiscountName   string          `gorm:"type:varchar(100);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ApprovedAt     time.Time       `gorm:"not null"`
	ApprovedBy     *int64
}

// TableName returns the table name for GORM
func (AppliedFeeDiscountModel) TableName() string {
	return "applied_fee_discounts"
}

// ToDomain converts the persistence model to a domain AppliedFeeDiscount.
func (m *AppliedFeeDiscountModel) ToDomain() *fee.AppliedFeeDiscount {
	return &fee.AppliedFeeDiscount{
		BaseAggregateRoot: m.ToAggregateRoot(),
		StudentYearID:     m.StudentYearID,
		FeeStructureID:    m.FeeStructureID,
		DiscountName:      m.DiscountName,
		DiscountAmount:    m.DiscountAmount,
		ApprovedAt:        m.ApprovedAt,
		ApprovedBy:        m.ApprovedBy,
	}
}

// FromDomain populates the persistence model from a domain AppliedFeeDiscount.
func (m *AppliedFeeDiscountModel) FromDomain(d *fee.AppliedFeeDiscount) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.StudentYearID = d.StudentYearID
	m.FeeStructureID = d.FeeStructureID
	m.DiscountName = d.DiscountName
	m.DiscountAmount = d.DiscountAmount
	m.ApprovedAt = d.ApprovedAt
	m.ApprovedBy = d.ApprovedBy
}

// StudentFeeModel is the persistence model for the StudentFee ledger row.
// Uniqueness of (student_year_id, fee_structure_id, month, school_year_id)
// is enforced by an expression index in the migrations.
type StudentFeeModel struct {
	AggregateModel
	StudentYearID   int64           `gorm:"not null;index"`
	FeeStructureID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	FeeType         fee.FeeType     `gorm:"type:varchar(30);not null"`
	Month           *int            `gorm:"type:smallint"`
	SchoolYearID    int64           `gorm:"not null;index"`
	DueDate         time.Time       `gorm:"type:date;not null;index"`
	OriginalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DueAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PenaltyAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AppliedDiscount bool            `gorm:"not null;default:false"`
	PenaltyApplied  bool            `gorm:"not null;default:false"`
	Status          fee.FeeStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ReceiptNumber   string          `gorm:"type:varchar(30);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (StudentFeeModel) TableName() string {
	return "student_fees"
}

// ToDomain converts the persistence model to a domain StudentFee.
func (m *StudentFeeModel) ToDomain() *fee.StudentFee {
	return &fee.StudentFee{
		BaseAggregateRoot: m.ToAggregateRoot(),
		StudentYearID:     m.StudentYearID,
		FeeStructureID:    m.FeeStructureID,
		FeeType:           m.FeeType,
		Month:             m.Month,
		SchoolYearID:      m.SchoolYearID,
		DueDate:           m.DueDate,
		OriginalAmount:    m.OriginalAmount,
		PaidAmount:        m.PaidAmount,
		DueAmount:         m.DueAmount,
		PenaltyAmount:     m.PenaltyAmount,
		DiscountAmount:    m.DiscountAmount,
		AppliedDiscount:   m.AppliedDiscount,
		PenaltyApplied:    m.PenaltyApplied,
		Status:            m.Status,
		ReceiptNumber:     m.ReceiptNumber,
	}
}

// FromDomain populates the persistence model from a domain StudentFee.
func (m *StudentFeeModel) FromDomain(s *fee.StudentFee) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.StudentYearID = s.StudentYearID
	m.FeeStructureID = s.FeeStructureID
	m.FeeType = s.FeeType
	m.Month = s.Month
	m.SchoolYearID = s.SchoolYearID
	m.DueDate = s.DueDate
	m.OriginalAmount = s.OriginalAmount
	m.PaidAmount = s.PaidAmount
	m.DueAmount = s.DueAmount
	m.PenaltyAmount = s.PenaltyAmount
	m.DiscountAmount = s.DiscountAmount
	m.AppliedDiscount = s.AppliedDiscount
	m.PenaltyApplied = s.PenaltyApplied
	m.Status = s.Status
	m.ReceiptNumber = s.ReceiptNumber
}

// FeePaymentModel is the persistence model for a payment journal entry.
type FeePaymentModel struct {
	BaseModel
	StudentFeeID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	PaymentMethod    fee.PaymentMethod `gorm:"type:varchar(20);not null"`
	Status           fee.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	PaymentDate      time.Time         `gorm:"not null"`
	ReceivedBy       *int64
	Notes            string  `gorm:"type:text"`
	ChequeNumber     *string `gorm:"type:varchar(50);uniqueIndex"`
	GatewayOrderID   string  `gorm:"type:varchar(100);index"`
	GatewayPaymentID string  `gorm:"type:varchar(100);index"`
	GatewaySignature string  `gorm:"type:varchar(256)"`
}

// TableName returns the table name for GORM
func (FeePaymentModel) TableName() string {
	return "fee_payments"
}

// ToDomain converts the persistence model to a domain FeePayment.
func (m *FeePaymentModel) ToDomain() *fee.FeePayment {
	return &fee.FeePayment{
		BaseEntity:    m.BaseModel.ToDomain(),
		StudentFeeID:  m.StudentFeeID,
		Amount:        m.Amount,
		PaymentMethod: m.PaymentMethod,
		Status:        m.Status,
		PaymentDate:   m.PaymentDate,
		ReceivedBy:    m.ReceivedBy,
		Notes:         m.Notes,
		ChequeNumber:  m.ChequeNumber,
		Gateway: fee.GatewayRef{
			OrderID:   m.GatewayOrderID,
			PaymentID: m.GatewayPaymentID,
			Signature: m.GatewaySignature,
		},
	}
}

// FromDomain populates the persistence model from a domain FeePayment.
func (m *FeePaymentModel) FromDomain(p *fee.FeePayment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.StudentFeeID = p.StudentFeeID
	m.Amount = p.Amount
	m.PaymentMethod = p.PaymentMethod
	m.Status = p.Status
	m.PaymentDate = p.PaymentDate
	m.ReceivedBy = p.ReceivedBy
	m.Notes = p.Notes
	m.ChequeNumber = p.ChequeNumber
	m.GatewayOrderID = p.Gateway.OrderID
	m.GatewayPaymentID = p.Gateway.PaymentID
	m.GatewaySignature = p.Gateway.Signature
}
