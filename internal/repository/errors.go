package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrOpenOrderExists is returned when a ticket already has a pending or awaiting_payment order.
	ErrOpenOrderExists = errors.New("an open upgrade order already exists for this ticket")
	// ErrInvalidTransition is returned for a status change the order lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrEmailTaken is returned when a new customer reuses a registered email.
	ErrEmailTaken = errors.New("a customer with this email already exists")
	// ErrUnavailable wraps failures to reach the backing store.
	ErrUnavailable = errors.New("backing store unavailable")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
	openOrderIndex        = "upgrade_orders_one_open_per_ticket"
	customerEmailKey      = "customers_email_key"
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == openOrderIndex:
			return ErrOpenOrderExists
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == customerEmailKey:
			return ErrEmailTaken
		case pgErr.Code == pgInvalidText, pgErr.Code == pgForeignKeyViolation:
			// malformed uuid or dangling reference: the row cannot exist
			return ErrNotFound
		}
		return err
	}
	if isConnectivity(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
