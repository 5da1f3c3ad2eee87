// Package usb provides the device inventory and mutation core for USB
// Power Flow Core.
//
// It discovers USB device instances in the machine's device-registration
// tree, resolves their display metadata through fallback chains, holds
// the latest snapshot for the API layer, and performs direct writes of
// the per-device power-management flag.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                           usb package                              │
//	│                                                                    │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────────┐  │
//	│  │    Scanner     │   │     Store      │   │      Executor      │  │
//	│  │  (scanner.go)  │──▶│   (store.go)   │   │   (executor.go)    │  │
//	│  │                │   │                │   │                    │  │
//	│  │ • Tree walk    │   │ • Snapshot     │   │ • Direct writes    │  │
//	│  │ • Fallbacks    │   │ • Query/sort   │   │ • Classification   │  │
//	│  │ • Text clean   │   │ • Type counts  │   │ • Bulk disable     │  │
//	│  └────────────────┘   └────────────────┘   └────────────────────┘  │
//	│          │                                          │              │
//	└──────────│──────────────────────────────────────────│──────────────┘
//	           ▼                                          ▼
//	┌──────────────────────┐                  ┌──────────────────────────┐
//	│   winreg.Registry    │                  │   HistoryRepository      │
//	│ (platform or memory) │                  │ (mutation_history table) │
//	└──────────────────────┘                  └──────────────────────────┘
//
// # Key Types
//
//   - Device: immutable record for one device parameters node
//   - PowerState: tri-state power flag (disabled, enabled, unavailable)
//   - Scanner: fault-tolerant tree walk producing sorted snapshots
//   - Store: atomically replaced snapshot with filtered/sorted queries
//   - Executor: direct writes classified as success, needs-elevation,
//     or hard error
//
// # Failure Policy
//
// Enumeration never fails wholesale: a denied or unreadable subtree
// contributes zero paths and a counter bump. Writes classify only the
// platform's exact access-denied condition as "needs elevation";
// everything else is a hard error surfaced to the operator. No retries
// happen anywhere in this package.
//
// # Thread Safety
//
// The Store is safe for concurrent use; Scanner and Executor hold no
// mutable state beyond their configuration and may be shared freely.
package usb
