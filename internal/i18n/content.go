package i18n

// Content is the fixed schema every locale document must fill in completely.
type Content struct {
	Common     CommonStrings    `json:"common"`
	Header     HeaderStrings    `json:"header"`
	Welcome    WelcomeStrings   `json:"welcome"`
	Packages   PackageStrings   `json:"packages"`
	Navigation NavigationLabels `json:"navigation"`
	Weather    WeatherLabels    `json:"weather"`
	Metadata   PageMetadata     `json:"metadata"`
	Manifest   ManifestStrings  `json:"manifest"`
	JSONLD     JSONLDStrings    `json:"jsonLd"`
}

type CommonStrings struct {
	Loading           string `json:"loading"`
	Error             string `json:"error"`
	Retry             string `json:"retry"`
	BookNow           string `json:"bookNow"`
	PerPerson         string `json:"perPerson"`
	SkipToMainContent string `json:"skipToMainContent"`
}

type HeaderStrings struct {
	LogoAlt  string `json:"logoAlt"`
	Location string `json:"location"`
}

type WelcomeStrings struct {
	Description  string `json:"description"`
	Title        string `json:"title"`
	Intro        string `json:"intro"`
	History      string `json:"history"`
	CallToAction string `json:"callToAction"`
	Features     struct {
		Safety    string `json:"safety"`
		Family    string `json:"family"`
		Memorable string `json:"memorable"`
	} `json:"features"`
}

type PackageStrings struct {
	RaftingRiding struct {
		Title          string `json:"title"`
		Tag            string `json:"tag"`
		Integration    string `json:"integration"`
		AgeRequirement string `json:"ageRequirement"`
		Activities     struct {
			Rafting string `json:"rafting"`
			Riding  string `json:"riding"`
			Hiking  string `json:"hiking"`
		} `json:"activities"`
		SafetyNote string `json:"safetyNote"`
		Price      string `json:"price"`
	} `json:"raftingRiding"`
	KayakingRidingTrekking struct {
		Title          string `json:"title"`
		Integration    string `json:"integration"`
		AgeRequirement string `json:"ageRequirement"`
		Activities     struct {
			Kayak    string `json:"kayak"`
			Riding   string `json:"riding"`
			Trekking string `json:"trekking"`
		} `json:"activities"`
		SafetyNote string `json:"safetyNote"`
		Price      string `json:"price"`
	} `json:"kayakingRidingTrekking"`
}

type NavigationLabels struct {
	Home                 string `json:"home"`
	Map                  string `json:"map"`
	Activities           string `json:"activities"`
	Offers               string `json:"offers"`
	More                 string `json:"more"`
	ContactUs            string `json:"contactUs"`
	FamilyPackages       string `json:"familyPackages"`
	SafetyInfo           string `json:"safetyInfo"`
	BookFamilyExperience string `json:"bookFamilyExperience"`
}

type WeatherLabels struct {
	Unavailable string `json:"unavailable"`
	Location    string `json:"location"`
	Details     struct {
		FeelsLike  string `json:"feelsLike"`
		Humidity   string `json:"humidity"`
		Index      string `json:"index"`
		CloudCover string `json:"cloudCover"`
		Pressure   string `json:"pressure"`
	} `json:"details"`
}

type PageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	OpenGraph   struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ImageAlt    string `json:"imageAlt"`
	} `json:"openGraph"`
	Twitter struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"twitter"`
}

type ManifestStrings struct {
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Description string `json:"description"`
}

type JSONLDStrings struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BrandName   string `json:"brandName"`
}
