// Package fetch - platform.go provides platform detection and platform-specific selectors.
package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known listing portal.
type Platform string

const (
	// PlatformSUUMO is Recruit's SUUMO portal
	PlatformSUUMO Platform = "suumo"
	// PlatformHomes is LIFULL HOME'S
	PlatformHomes Platform = "homes"
	// PlatformAtHome is at home
	PlatformAtHome Platform = "athome"
	// PlatformAirbnb is Airbnb (rendered client-side)
	PlatformAirbnb Platform = "airbnb"
	// PlatformUnknown is an unrecognized site
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the listing portal from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())

	switch {
	case hasDomain(host, "suumo.jp"):
		return PlatformSUUMO
	case hasDomain(host, "homes.co.jp"):
		return PlatformHomes
	case hasDomain(host, "athome.co.jp"):
		return PlatformAtHome
	case hasDomain(host, "airbnb.com"), hasDomain(host, "airbnb.jp"), strings.Contains(host, ".airbnb."):
		return PlatformAirbnb
	default:
		return PlatformUnknown
	}
}

func hasDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// RequiresBrowser reports whether the platform renders listing content with
// JavaScript, so a plain HTTP fetch never sees it.
func RequiresBrowser(platform Platform) bool {
	return platform == PlatformAirbnb
}

// PlatformContentSelectors returns content selectors optimized for a specific platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformSUUMO:
		return []string{
			"#mainContents",
			".section_h1-header ~ .l-contents",
			".property_view_table",
			"#js-view_gallery ~ div",
			"main",
		}
	case PlatformHomes:
		return []string{
			"#prg-mod-bukkenDetail",
			".mod-detailInfo",
			".bukkenSpec",
			"main",
		}
	case PlatformAtHome:
		return []string{
			"#item-detail_basic",
			".property-detail",
			".bukkenSpec",
			"main",
		}
	case PlatformAirbnb:
		return []string{
			"[data-section-id='DESCRIPTION_DEFAULT']",
			"[data-section-id='OVERVIEW_DEFAULT_V2']",
			"main",
		}
	default:
		return ListingSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		// Inquiry and contact forms
		"form",
		".contact-form",
		".inquiry",
		".js-contact",

		// Recommendations and recently viewed
		".recommend",
		".related-properties",
		".history",

		// Social and share buttons
		".social-share",
		".share-buttons",
		".sns",

		// Breadcrumbs and paging
		".breadcrumb",
		".pager",
	}

	switch platform {
	case PlatformSUUMO:
		return append(common,
			".sitemapBlock",
			".js-cassetteLink",
			"#js-bukkenList",
		)
	case PlatformHomes:
		return append(common,
			".mod-relatedBukken",
			".mod-inquiryBox",
		)
	case PlatformAtHome:
		return append(common,
			".other-property",
			".inquiry-area",
		)
	case PlatformAirbnb:
		return append(common,
			"[data-section-id='REVIEWS_DEFAULT']",
			"[data-section-id='BOOK_IT_SIDEBAR']",
			"[data-section-id='HOST_PROFILE_DEFAULT']",
		)
	default:
		return common
	}
}
