/*
Package domain contains the core domain models of the Flowra workflow engine.

It defines the vocabulary of a declarative state machine bound to an owning
entity: states, transitions, guards, actions, state groups and subflow
bindings, plus the Status/History records the engine persists. This package
is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Schema: the static description a workflow type produces (states, transitions, groups, subflows).
  - Transition: a named edge between two states with ordered guards and actions.
  - Guard / Decision: read-only checks that may deny a transition.
  - Action: side effects run after a transition is committed, inline or deferred.
  - Subflow: a nested workflow bound to an outer state with an exit mapping.
  - Record: a Status snapshot or an append-only History entry.
*/
package domain
