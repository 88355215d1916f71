package reserve

import "errors"

var (
	// ErrDepositsDisabled is returned when the protocol settings have the
	// deposit path switched off.
	ErrDepositsDisabled = errors.New("deposits are disabled")

	// ErrCapacityExceeded is returned when a deposit amount is above the
	// configured per-deposit ceiling. The ceiling is inclusive: depositing
	// exactly MaxDepositAmount succeeds.
	ErrCapacityExceeded = errors.New("deposit exceeds max deposit amount")

	// ErrZeroAmount is returned for deposits or redemptions of zero.
	ErrZeroAmount = errors.New("amount must be > 0")

	// ErrInsufficientReserveSupply is returned when a redemption is quoted
	// against a pool with no outstanding wrapped supply.
	ErrInsufficientReserveSupply = errors.New("no outstanding wrapped supply")

	// ErrCooldownActive is returned when an account redeems before its
	// deposit delay has elapsed.
	ErrCooldownActive = errors.New("deposit cooldown still active")

	// ErrInsufficientBalance is surfaced from the wrapped token when the
	// account holds less than the requested redemption amount.
	ErrInsufficientBalance = errors.New("insufficient wrapped balance")

	// ErrInsufficientAuthorization is surfaced from the wrapped token when
	// the gateway is not authorized to move the requested amount.
	ErrInsufficientAuthorization = errors.New("insufficient allowance")
)
