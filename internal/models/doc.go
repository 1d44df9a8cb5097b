// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package models defines the data structures shared across the pipeline.

Model Categories:

1. Processing domain:
  - ProcessingEvent: a unit of work on the priority queue
  - EventType: new_email, new_calendar_event, entity_update, user_action,
    scheduled_analysis
  - CachedContext: a user's memoized business context

2. Analysis output:
  - Insight and InsightStatus
  - ProcessingResult: what the intelligence backend returns for one event

3. Delivery domain:
  - RealtimeEvent: an event broadcast to connected clients and kept in the
    replay history
  - RealtimeEventType and the New*Event constructors

4. API:
  - APIResponse, APIError and Metadata

Identity is the result of token validation and is shared by the HTTP
middleware and the websocket hub.

Thread Safety:

Models carry no locks. A ProcessingEvent is treated as immutable once
enqueued (WithRetry returns a copy), and CachedContext values handed out
by the cache are clones.
*/
package models
