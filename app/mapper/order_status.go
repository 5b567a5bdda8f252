package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
)

func OrderStatusToResponse(item *entity.OrderStatus) *types.OrderStatus {
	if item == nil {
		return nil
	}

	return &types.OrderStatus{
		ID:                item.ID,
		CollectID:         item.CollectID,
		CustomOrderID:     item.CustomOrderID,
		OrderAmount:       item.OrderAmount.InexactFloat64(),
		TransactionAmount: nullDecimalToFloat(item.TransactionAmount),
		PaymentMode:       item.PaymentMode,
		PaymentDetails:    item.PaymentDetails,
		BankReference:     item.BankReference,
		PaymentMessage:    item.PaymentMessage,
		Status:            item.Status,
		ErrorMessage:      item.ErrorMessage,
		PaymentTime:       utcPtr(item.PaymentTime),
		CreatedAt:         item.CreatedAt.UTC(),
		UpdatedAt:         item.UpdatedAt.UTC(),
	}
}

func TransactionStatusToResponse(message string, item *entity.OrderStatus) *types.TransactionStatusResponse {
	if item == nil {
		return nil
	}

	return &types.TransactionStatusResponse{
		Message:           message,
		Status:            item.Status,
		CollectID:         item.CollectID,
		OrderAmount:       item.OrderAmount.InexactFloat64(),
		TransactionAmount: nullDecimalToFloat(item.TransactionAmount),
		PaymentMode:       item.PaymentMode,
		PaymentDetails:    item.PaymentDetails,
		BankReference:     item.BankReference,
		PaymentMessage:    item.PaymentMessage,
		ErrorMessage:      item.ErrorMessage,
		PaymentTime:       utcPtr(item.PaymentTime),
	}
}

func TransactionToResponse(item *entity.Transaction) types.Transaction {
	return types.Transaction{
		CollectID:         item.CollectID,
		SchoolID:          item.SchoolID,
		OrderID:           item.OrderID,
		EdvironOrderID:    item.CustomOrderID,
		OrderAmount:       item.OrderAmount.InexactFloat64(),
		TransactionAmount: nullDecimalToFloat(item.TransactionAmount),
		PaymentMethod:     item.PaymentMode,
		Status:            item.Status,
		DateTime:          item.DateTime.UTC(),
		StudentName:       item.StudentName,
		StudentID:         item.StudentID,
		PhoneNo:           item.PhoneNo,
		Gateway:           item.Gateway,
	}
}

func TransactionsToResponse(items []*entity.Transaction) []types.Transaction {
	result := make([]types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToResponse(item))
	}
	return result
}

func nullDecimalToFloat(v decimal.NullDecimal) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Decimal.InexactFloat64()
	return &f
}

func utcPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := v.UTC()
	return &t
}
