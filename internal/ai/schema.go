package ai

// conversionsSchemaDescription describes the ClickHouse schema used for
// NL→SQL prompting. Keep it in sync with history.ClickHouseStore.EnsureSchema.
const conversionsSchemaDescription = `
Database: reserve
Table: conversions

Columns:
  - id         String        -- Unique event id
  - timestamp  DateTime64    -- When the conversion executed (UTC)
  - account    String        -- Account address (0x-prefixed hex)
  - kind       String        -- "deposit" (base -> wrapped) or "redeem" (wrapped -> base)
  - amount_in  UInt256       -- Input amount in base units
  - amount_out UInt256       -- Output amount in base units
  - fee        UInt256       -- Deposit fee retained by the pool (0 for redemptions)
  - block      UInt64        -- Block height at execution

Notes:
  - Deposit volume is SUM(amount_in) WHERE kind = 'deposit'; redemption volume is SUM(amount_in) WHERE kind = 'redeem'.
  - Fees are only charged on deposits.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
`
