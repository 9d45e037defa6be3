package gateway

import "github.com/ayo6706/seller-payouts/internal/domain"

// ManualRail is an off-platform channel. Payouts on it complete only when an
// operator confirms the transfer was made.
type ManualRail struct{}

func NewManualRail() *ManualRail { return &ManualRail{} }

func (ManualRail) Name() string { return "manual" }

func (ManualRail) Kind() string { return domain.RailKindManual }
