// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package deletion coordinates the fan-out deletion of a media request
// across its six external collaborators (§3/§4H): it snapshots the request
// into a DeletionLog, hard-deletes the request row, then acknowledges and
// confirms the deletion against each applicable service in a fixed order,
// finishing with a delayed pass that verifies each confirmed service
// actually dropped the entity.
package deletion
