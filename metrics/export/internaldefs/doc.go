// Package internaldefs holds the shared counter naming table used by the
// metric exporters. It exists so the OTel and Prometheus exporters emit
// identical metric names and help text.
package internaldefs
