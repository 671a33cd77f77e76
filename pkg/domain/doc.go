/*
Package domain contains the records and events shared between the rollkit
engine and its hosts.

It is kept pure and free of external dependencies like I/O or persistence.
The dice themselves live in package dice; this package only describes what
hosts persist and observe.

# Key Entities

  - RollRecord: An evaluated roll together with its serialized term tree.
  - Macro: A named formula from a formula library.
  - LifecycleHooks: Callbacks fired around every evaluation.
*/
package domain
