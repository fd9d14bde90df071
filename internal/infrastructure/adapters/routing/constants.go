package routing

const (
	// API host
	DefaultBaseURL = "https://li.quest"

	// Endpoints
	routesPath          = "/v1/advanced/routes"
	stepTransactionPath = "/v1/advanced/stepTransaction"
	statusPath          = "/v1/status"

	// Rate limiting
	DefaultRequestsPerSecond = 10

	// Route ordering preferences
	OrderRecommended = "RECOMMENDED"
	OrderCheapest    = "CHEAPEST"
	OrderFastest     = "FASTEST"

	DefaultSlippage = 0.005

	// NativeTokenAddress is how the routing service names a chain's gas token
	NativeTokenAddress = "0x0000000000000000000000000000000000000000"
)
