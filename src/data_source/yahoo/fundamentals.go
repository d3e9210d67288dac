package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"market-analytics/src/helpers"
	"market-analytics/src/models"
)

const quoteSummaryModules = "price,summaryDetail,assetProfile,defaultKeyStatistics"

// rawValue is the {"raw": 1.2, "fmt": "1.20"} wrapper of quoteSummary.
type rawValue struct {
	Raw float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName     string   `json:"longName"`
				ShortName    string   `json:"shortName"`
				ExchangeName string   `json:"exchangeName"`
				Currency     string   `json:"currency"`
				MarketCap    rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingPE       rawValue `json:"trailingPE"`
				ForwardPE        rawValue `json:"forwardPE"`
				Beta             rawValue `json:"beta"`
				DividendYield    rawValue `json:"dividendYield"`
				FiftyTwoWeekHigh rawValue `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  rawValue `json:"fiftyTwoWeekLow"`
				AverageVolume    rawValue `json:"averageVolume"`
			} `json:"summaryDetail"`
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
			DefaultKeyStatistics struct {
				TrailingEps       rawValue `json:"trailingEps"`
				PriceToBook       rawValue `json:"priceToBook"`
				SharesOutstanding rawValue `json:"sharesOutstanding"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// -----------------------------------------------------------------------------

// FetchFundamentals fetches company and valuation fields from quoteSummary.
func (s *YahooFinanceSource) FetchFundamentals(ctx context.Context, symbol string) (*models.MFundamentalSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s", s.BaseURL, url.PathEscape(symbol))
	respBytes, err := s.Network.Get(ctx, endpoint, map[string]string{"modules": quoteSummaryModules})
	if err != nil {
		return nil, fmt.Errorf("network error for %s: %w", symbol, err)
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, helpers.NewDataSourceError("json unmarshal failed", err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, helpers.NewDataSourceError(
			fmt.Sprintf("yahoo api error: %s - %s", resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description), nil)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("no fundamentals for %s", symbol), nil)
	}

	r := resp.QuoteSummary.Result[0]
	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}

	return &models.MFundamentalSnapshot{
		Symbol:            symbol,
		CompanyName:       name,
		Exchange:          r.Price.ExchangeName,
		Currency:          r.Price.Currency,
		Sector:            r.AssetProfile.Sector,
		Industry:          r.AssetProfile.Industry,
		MarketCap:         r.Price.MarketCap.Raw,
		PERatio:           r.SummaryDetail.TrailingPE.Raw,
		ForwardPE:         r.SummaryDetail.ForwardPE.Raw,
		EPS:               r.DefaultKeyStatistics.TrailingEps.Raw,
		Beta:              r.SummaryDetail.Beta.Raw,
		DividendYield:     r.SummaryDetail.DividendYield.Raw,
		PriceToBook:       r.DefaultKeyStatistics.PriceToBook.Raw,
		FiftyTwoWeekHigh:  r.SummaryDetail.FiftyTwoWeekHigh.Raw,
		FiftyTwoWeekLow:   r.SummaryDetail.FiftyTwoWeekLow.Raw,
		AverageVolume:     r.SummaryDetail.AverageVolume.Raw,
		SharesOutstanding: r.DefaultKeyStatistics.SharesOutstanding.Raw,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}
