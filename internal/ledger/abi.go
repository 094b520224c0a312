package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// FloodPredictor entry points
const (
	MethodUpdateAllMetrics   = "updateAllMetrics"
	MethodDepositAsSponsor   = "depositAsSponsor"
	MethodDepositAsInvestor  = "depositAsInvestor"
	MethodAddBeneficiary     = "addBeneficiary"
	MethodTriggerWithdrawals = "triggerInvestorWithdrawals"

	MethodOwner              = "owner"
	MethodGetContractBalance = "getContractBalance"
	MethodGetInvestorDeposit = "getInvestorDeposit"
	MethodWaterLevel         = "waterLevel"
	MethodTidePrediction     = "tidePrediction"
	MethodCurrentSpeed       = "currentSpeed"
	MethodCurrentThreatLevel = "currentThreatLevel"
	MethodTotalSponsorFunds  = "totalSponsorFunds"
	MethodTotalInvestorFunds = "totalInvestorFunds"
)

// FloodPredictorABI covers the entry points and events the gateway uses
const FloodPredictorABI = `[
  {"type":"function","name":"updateAllMetrics","stateMutability":"nonpayable","inputs":[{"name":"_waterLevel","type":"uint256"},{"name":"_tidePrediction","type":"uint256"},{"name":"_currentSpeed","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"depositAsSponsor","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"depositAsInvestor","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"addBeneficiary","stateMutability":"nonpayable","inputs":[{"name":"_beneficiary","type":"address"}],"outputs":[]},
  {"type":"function","name":"triggerInvestorWithdrawals","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getContractBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getInvestorDeposit","stateMutability":"view","inputs":[{"name":"_investor","type":"address"}],"outputs":[{"name":"amount","type":"uint256"},{"name":"depositTime","type":"uint256"},{"name":"withdrawn","type":"bool"}]},
  {"type":"function","name":"waterLevel","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tidePrediction","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"currentSpeed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"currentThreatLevel","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"totalSponsorFunds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalInvestorFunds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"DataUpdated","anonymous":false,"inputs":[{"name":"waterLevel","type":"uint256","indexed":false},{"name":"tidePrediction","type":"uint256","indexed":false},{"name":"currentSpeed","type":"uint256","indexed":false}]},
  {"type":"event","name":"ThreatLevelUpdated","anonymous":false,"inputs":[{"name":"level","type":"uint8","indexed":false}]},
  {"type":"event","name":"SponsorDeposited","anonymous":false,"inputs":[{"name":"sponsor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"InvestorDeposited","anonymous":false,"inputs":[{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"FundsDisbursedToBeneficiaries","anonymous":false,"inputs":[{"name":"totalAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"InvestorWithdrawn","anonymous":false,"inputs":[{"name":"investor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"withInterest","type":"bool","indexed":false}]}
]`

// RestrictedSelector is the 4-byte selector of OwnableUnauthorizedAccount(address)
const RestrictedSelector = "118cdaa7"

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(FloodPredictorABI))
	if err != nil {
		panic("ledger: invalid contract ABI: " + err.Error())
	}
	return parsed
}

// ParsedABI returns the parsed contract ABI
func ParsedABI() abi.ABI {
	return parsedABI
}
