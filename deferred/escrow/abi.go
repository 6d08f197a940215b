package escrow

// EscrowABI is the subset of the deferred-scheme escrow contract's ABI this
// package consumes, shaped the way the exact scheme's constants.go embeds
// its ABI JSON literals.
const EscrowABI = `[
  {"name":"isCollected","type":"function","stateMutability":"view",
   "inputs":[{"name":"id","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"getOutstandingAndCollectableAmount","type":"function","stateMutability":"view",
   "inputs":[{"name":"voucher","type":"tuple","components":[
      {"name":"id","type":"bytes32"},{"name":"buyer","type":"address"},{"name":"seller","type":"address"},
      {"name":"valueAggregate","type":"uint256"},{"name":"asset","type":"address"},{"name":"timestamp","type":"uint64"},
      {"name":"nonce","type":"uint256"},{"name":"escrow","type":"address"},{"name":"chainId","type":"uint256"},
      {"name":"expiry","type":"uint64"}]}],
   "outputs":[{"name":"outstanding","type":"uint256"},{"name":"collectable","type":"uint256"}]},
  {"name":"getAccount","type":"function","stateMutability":"view",
   "inputs":[{"name":"buyer","type":"address"},{"name":"seller","type":"address"},{"name":"asset","type":"address"}],
   "outputs":[{"name":"balance","type":"uint256"},{"name":"thawingAmount","type":"uint256"},{"name":"thawEndTime","type":"uint256"}]},
  {"name":"getAccountDetails","type":"function","stateMutability":"view",
   "inputs":[{"name":"buyer","type":"address"},{"name":"seller","type":"address"},{"name":"asset","type":"address"},
             {"name":"ids","type":"bytes32[]"},{"name":"values","type":"uint256[]"}],
   "outputs":[{"name":"balance","type":"uint256"},{"name":"allowance","type":"uint256"},{"name":"nonce","type":"uint256"}]},
  {"name":"getVerificationData","type":"function","stateMutability":"view",
   "inputs":[{"name":"buyer","type":"address"},{"name":"seller","type":"address"},{"name":"asset","type":"address"},{"name":"depositNonce","type":"bytes32"}],
   "outputs":[{"name":"voucherOutstanding","type":"uint256"},{"name":"voucherCollectable","type":"uint256"},
              {"name":"availableBalance","type":"uint256"},{"name":"allowance","type":"uint256"},
              {"name":"nonce","type":"uint256"},{"name":"isDepositNonceUsed","type":"bool"}]},
  {"name":"collect","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"voucher","type":"tuple","components":[
      {"name":"id","type":"bytes32"},{"name":"buyer","type":"address"},{"name":"seller","type":"address"},
      {"name":"valueAggregate","type":"uint256"},{"name":"asset","type":"address"},{"name":"timestamp","type":"uint64"},
      {"name":"nonce","type":"uint256"},{"name":"escrow","type":"address"},{"name":"chainId","type":"uint256"},
      {"name":"expiry","type":"uint64"}]},{"name":"signature","type":"bytes"}],
   "outputs":[]},
  {"name":"depositWithAuthorization","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"auth","type":"tuple","components":[
      {"name":"buyer","type":"address"},{"name":"seller","type":"address"},{"name":"asset","type":"address"},
      {"name":"amount","type":"uint256"},{"name":"nonce","type":"bytes32"},{"name":"expiry","type":"uint64"}]},
      {"name":"signature","type":"bytes"}],
   "outputs":[]},
  {"name":"flushWithAuthorization","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"auth","type":"tuple","components":[
      {"name":"buyer","type":"address"},{"name":"seller","type":"address"},{"name":"asset","type":"address"},
      {"name":"nonce","type":"bytes32"},{"name":"expiry","type":"uint64"}]},{"name":"signature","type":"bytes"}],
   "outputs":[]},
  {"name":"VoucherCollected","type":"event","anonymous":false,
   "inputs":[{"name":"id","type":"bytes32","indexed":true},{"name":"nonce","type":"uint256","indexed":false},
             {"name":"collectedAmount","type":"uint256","indexed":false}]}
]`

// ERC20PermitABI is the EIP-2612 permit surface consumed on the asset
// contract during the deposit-authorization side channel.
const ERC20PermitABI = `[
  {"name":"permit","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"},{"name":"value","type":"uint256"},
             {"name":"deadline","type":"uint256"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],
   "outputs":[]},
  {"name":"allowance","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"nonces","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`
