package cmd

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/benedict-erwin/geo-gateway/pkg/maxmind"
	"github.com/benedict-erwin/geo-gateway/pkg/system"
	"github.com/benedict-erwin/geo-gateway/pkg/utils"
)

var errMaxMindDisabled = errors.New("MaxMind is disabled (set maxmind.enabled in config)")

// openReader opens the local databases for a one-off CLI command
func openReader() (*maxmind.Reader, error) {
	reader, err := maxmind.New(cfg.MaxMind)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MaxMind: %w", err)
	}
	if reader == nil {
		return nil, errMaxMindDisabled
	}
	return reader, nil
}

func printJSON(cmd *cobra.Command, v any) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
}

func jsonFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

var maxmindStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show MaxMind database status",
	Long:  "Display whether the configured GeoIP databases exist and are loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := openReader()
		if err != nil {
			return err
		}
		defer reader.Close()

		info := reader.Info()
		if jsonFlag(cmd) {
			printJSON(cmd, info)
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "MaxMind Database Status\n")
		fmt.Fprintf(out, "=======================\n")

		table := tablewriter.NewWriter(out)
		table.Header([]string{"Database", "Path", "Size", "Modified", "Status"})
		table.Append(databaseRow("CITY", info.CityDBPath, info.CityDBSize, info.CityDBModTime, info.CityLoaded))
		table.Append(databaseRow("ASN", info.ASNDBPath, info.ASNDBSize, info.ASNDBModTime, info.ASNLoaded))
		table.Render()

		if err := reader.Health(); err != nil {
			fmt.Fprintf(out, "\nHealth: %v\n", err)
		} else {
			fmt.Fprintf(out, "\nHealth: OK\n")
		}
		return nil
	},
}

func databaseRow(name, path string, size int64, modified time.Time, loaded bool) []string {
	status := "Missing"
	sizeText, modText := "N/A", "N/A"
	if !modified.IsZero() {
		status = "Unreadable"
		sizeText = system.FormatBytes(uint64(size))
		modText = utils.FormatTime(modified)
	}
	if loaded {
		status = "Loaded"
	}
	return []string{name, path, sizeText, modText, status}
}

var maxmindInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show detailed database information",
	Long:  "Display detailed information about loaded MaxMind databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := openReader()
		if err != nil {
			return err
		}
		defer reader.Close()

		info := reader.Info()
		if jsonFlag(cmd) {
			printJSON(cmd, info)
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "MaxMind Database Information\n")
		fmt.Fprintf(out, "============================\n")
		fmt.Fprintf(out, "Loaded At: %s\n", utils.FormatTime(info.LoadedAt))
		fmt.Fprintf(out, "\nCity Database:\n  Path: %s\n  Size: %s\n  Modified: %s\n",
			info.CityDBPath, system.FormatBytes(uint64(info.CityDBSize)), utils.FormatTime(info.CityDBModTime))
		fmt.Fprintf(out, "\nASN Database:\n  Path: %s\n  Size: %s\n  Modified: %s\n",
			info.ASNDBPath, system.FormatBytes(uint64(info.ASNDBSize)), utils.FormatTime(info.ASNDBModTime))
		return nil
	},
}

var maxmindLookupCmd = &cobra.Command{
	Use:   "lookup [ip]",
	Short: "Test IP address lookup",
	Long:  "Perform a GeoIP lookup against the local databases, falling back to ASN data when the City database has no record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := netip.ParseAddr(args[0])
		if err != nil {
			return fmt.Errorf("invalid ip %q", args[0])
		}

		reader, err := openReader()
		if err != nil {
			return err
		}
		defer reader.Close()

		return printLookup(cmd, reader, addr)
	},
}

// geoLookup is the part of *maxmind.Reader the lookup command uses
type geoLookup interface {
	Lookup(addr netip.Addr) (*maxmind.GeoLocation, bool)
	LookupASN(addr netip.Addr) (*maxmind.ASNInfo, bool)
}

func printLookup(cmd *cobra.Command, reader geoLookup, addr netip.Addr) error {
	out := cmd.OutOrStdout()

	geo, found := reader.Lookup(addr)
	if !found {
		asn, ok := reader.LookupASN(addr)
		if !ok {
			return fmt.Errorf("no GeoIP record for %s", addr)
		}
		if jsonFlag(cmd) {
			printJSON(cmd, asn)
			return nil
		}
		fmt.Fprintf(out, "ASN Lookup Results for %s (no City record)\n", addr)
		fmt.Fprintf(out, "=============================\n")
		fmt.Fprintf(out, "  ASN: %d (%s)\n", asn.ASN, asn.Organization)
		return nil
	}

	if jsonFlag(cmd) {
		printJSON(cmd, geo)
		return nil
	}

	fmt.Fprintf(out, "GeoIP Lookup Results for %s\n", addr)
	fmt.Fprintf(out, "=============================\n")
	fmt.Fprintf(out, "  Country: %s (%s)\n", geo.Country, geo.CountryCode)
	fmt.Fprintf(out, "  City: %s\n", geo.City)
	fmt.Fprintf(out, "  Region: %s\n", geo.Region)
	fmt.Fprintf(out, "  Coordinates: %.4f, %.4f\n", geo.Latitude, geo.Longitude)
	fmt.Fprintf(out, "  Timezone: %s\n", geo.Timezone)
	if geo.ASN != 0 {
		fmt.Fprintf(out, "  ASN: %d (%s)\n", geo.ASN, geo.Org)
	}
	return nil
}

var maxmindCmd = &cobra.Command{
	Use:   "maxmind",
	Short: "MaxMind GeoIP database tools",
	Long:  "Commands for checking the local GeoIP databases and performing lookups",
}

func init() {
	maxmindCmd.AddCommand(maxmindStatusCmd)
	maxmindCmd.AddCommand(maxmindInfoCmd)
	maxmindCmd.AddCommand(maxmindLookupCmd)

	maxmindStatusCmd.Flags().BoolP("json", "j", false, "Output info in JSON format")
	maxmindInfoCmd.Flags().BoolP("json", "j", false, "Output info in JSON format")
	maxmindLookupCmd.Flags().BoolP("json", "j", false, "Output info in JSON format")
}
