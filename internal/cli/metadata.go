package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// metadataFlags lets the user supply lease facts instead of having the model
// extract them. Setting any of them skips extraction entirely.
type metadataFlags struct {
	address   string
	city      string
	state     string
	zip       string
	rent      float64
	deposit   float64
	start     string
	end       string
	landlord  string
	bedrooms  float64
	bathrooms float64
}

func (m *metadataFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&m.address, "address", "", "property address")
	fs.StringVar(&m.city, "city", "", "city")
	fs.StringVar(&m.state, "state", "", "state or province")
	fs.StringVar(&m.zip, "zip", "", "ZIP or postal code")
	fs.Float64Var(&m.rent, "rent", 0, "monthly rent")
	fs.Float64Var(&m.deposit, "deposit", 0, "security deposit")
	fs.StringVar(&m.start, "start-date", "", "lease start date")
	fs.StringVar(&m.end, "end-date", "", "lease end date")
	fs.StringVar(&m.landlord, "landlord", "", "landlord name")
	fs.Float64Var(&m.bedrooms, "bedrooms", 0, "number of bedrooms")
	fs.Float64Var(&m.bathrooms, "bathrooms", 0, "number of bathrooms")
}

// known returns the manual metadata, or nil when no metadata flag was set.
func (m *metadataFlags) known(cmd *cobra.Command) *models.LeaseMetadata {
	fs := cmd.Flags()
	md := &models.LeaseMetadata{}
	set := false

	str := func(name, v string) *string {
		if !fs.Changed(name) {
			return nil
		}
		set = true
		return models.Ptr(v)
	}
	num := func(name string, v float64) *float64 {
		if !fs.Changed(name) {
			return nil
		}
		set = true
		return models.Ptr(v)
	}

	md.PropertyAddress = str("address", m.address)
	md.City = str("city", m.city)
	md.State = str("state", m.state)
	md.ZipCode = str("zip", m.zip)
	md.MonthlyRent = num("rent", m.rent)
	md.SecurityDeposit = num("deposit", m.deposit)
	md.LeaseStartDate = str("start-date", m.start)
	md.LeaseEndDate = str("end-date", m.end)
	md.LandlordName = str("landlord", m.landlord)
	md.NumberOfBedrooms = num("bedrooms", m.bedrooms)
	md.NumberOfBathrooms = num("bathrooms", m.bathrooms)

	if !set {
		return nil
	}
	return md
}
