package models

import "time"

// Loan carries the subset of the loan record the agreement needs. The loan
// book itself is owned by the surrounding platform; this service only reads
// it through the directory.
type Loan struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	UserID       string     `bson:"user" json:"userId"`
	ProductType  string     `bson:"productType,omitempty" json:"productType,omitempty"`
	Amount       float64    `bson:"amount" json:"amount"`
	InterestRate float64    `bson:"interestRate" json:"interestRate"`
	TermMonths   int        `bson:"term" json:"term"`
	Status       string     `bson:"status,omitempty" json:"status,omitempty"`
	StartDate    *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
}

// User is the borrower identity behind a loan.
type User struct {
	ID        string `bson:"_id,omitempty" json:"id"`
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address   string `bson:"address,omitempty" json:"address,omitempty"`
}

// FullName joins the borrower's name parts for display on the agreement.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
