// Package services implements the driving ports: the ingestion run
// coordinator and the per-source scheduler. Services depend only on
// domain types and driven ports, never on concrete adapters.
package services
