package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-amm-go/approval"
	"github.com/defistate/defistate-amm-go/cmd/server/config"
	"github.com/defistate/defistate-amm-go/custody"
	"github.com/defistate/defistate-amm-go/engine"
	"github.com/defistate/defistate-amm-go/logging"
	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultLogFile = "console.log"
	// slippageBps is the tolerance applied to quoted amounts, in basis points.
	slippageBps = 50
	txTimeout   = 20 * time.Minute
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// console holds the in-process engine and the account commands act as.
type console struct {
	amm         *engine.Engine
	ledger      *custody.Ledger
	tokens      *tokenregistry.Registry
	broadcaster *server.Broadcaster
	accounts    []common.Address
	account     common.Address
}

func main() {
	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check " + DefaultLogFile + " for details." + Reset)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// --- 1. SETUP LOGGING (To File) ---
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}
	rootLogger, logCloser, err := logging.New(cfg.Log, io.Discard)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	// --- 2. LEDGER & POLICY ---
	reg, _ := cfg.TokenRegistry()
	escrow, _ := cfg.EscrowAddress()
	minLiquidity, _ := cfg.MinLiquidity()
	credits, _ := cfg.GenesisCredits(reg)
	policyCfg, _ := cfg.Policy(reg)

	ledger := custody.NewLedger(escrow)
	var accounts []common.Address
	seen := make(map[common.Address]bool)
	for _, c := range credits {
		if err := ledger.Credit(c.Token, c.Account, c.Amount); err != nil {
			rootLogger.Error("Failed to seed genesis balance", "account", c.Account, "error", err)
			closeApp()
		}
		if !seen[c.Account] {
			seen[c.Account] = true
			accounts = append(accounts, c.Account)
		}
	}
	if len(accounts) == 0 {
		rootLogger.Error("Genesis section funds no accounts")
		closeApp()
	}

	policy, err := approval.NewPolicy(policyCfg)
	if err != nil {
		rootLogger.Error("Failed to build approval policy", "error", err)
		closeApp()
	}

	// --- 3. ENGINE ---
	registry := prometheus.NewRegistry()
	broadcaster, err := server.NewBroadcaster(&server.BroadcasterConfig{
		BufferSize: cfg.StreamBufferSize,
		Registry:   registry,
		Logger:     rootLogger.With("component", "broadcaster"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize broadcaster", "error", err)
		closeApp()
	}
	amm, err := engine.New(&engine.Config{
		Custodian:        ledger,
		Gate:             policy,
		Publisher:        broadcaster,
		MinimumLiquidity: minLiquidity,
		Registry:         registry,
		Logger:           rootLogger.With("component", "engine"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize engine", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &console{
		amm:         amm,
		ledger:      ledger,
		tokens:      reg,
		broadcaster: broadcaster,
		accounts:    accounts,
		account:     accounts[0],
	}

	// --- 4. START CONSOLE ---
	fmt.Println(Green + "Starting AMM Console..." + Reset)
	fmt.Println("Logs are being written to '" + cfg.Log.File + "'")
	go func() {
		c.run(ctx)
		stop()
	}()

	<-ctx.Done()
	fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
}

// run handles user input and display.
func (c *console) run(ctx context.Context) {
	reader := bufio.NewReader(os.Stdin)
	time.Sleep(500 * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return
		}

		c.printMenu()

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			return
		}
		input = strings.TrimSpace(input)

		if input == "q" {
			fmt.Println(Yellow + "Exiting..." + Reset)
			return
		}
		c.handleCommand(ctx, input, reader)

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		reader.ReadString('\n')
	}
}

func (c *console) printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "AMM CONSOLE" + Reset + Gray + " | account " + c.account.Hex() + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s List Pairs\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Pair Info   %s(reserves, price)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s3.%s Balances    %s(tokens and shares)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s4.%s Add Liquidity\n", Cyan, Reset)
	fmt.Printf(" %s5.%s Remove Liquidity\n", Cyan, Reset)
	fmt.Printf(" %s6.%s Swap        %s(exact input)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s7.%s Swap        %s(exact output)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s8.%s Quote\n", Cyan, Reset)
	fmt.Printf(" %s9.%s Watch Events %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sa.%s Switch Account\n", Yellow, Reset)
	fmt.Printf(" %st.%s Tokens\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (c *console) handleCommand(ctx context.Context, input string, reader *bufio.Reader) {
	switch input {
	case "1":
		c.listPairs()
	case "2":
		c.pairInfo(reader)
	case "3":
		c.balances()
	case "4":
		c.addLiquidity(ctx, reader)
	case "5":
		c.removeLiquidity(ctx, reader)
	case "6":
		c.swapExactIn(ctx, reader)
	case "7":
		c.swapExactOut(ctx, reader)
	case "8":
		c.quote(reader)
	case "9":
		c.watchEvents(reader)
	case "a":
		c.switchAccount(reader)
	case "t":
		c.listTokens()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func (c *console) listTokens() {
	header("TOKENS")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tDECIMALS\tADDRESS\t")
	fmt.Fprintln(w, "------\t----\t--------\t-------\t")
	for _, t := range c.tokens.All() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", t.Symbol, t.Name, t.Decimals, t.Address.Hex())
	}
	w.Flush()
}

func (c *console) listPairs() {
	header("PAIRS")
	pools := c.amm.AllPairs()
	if len(pools) == 0 {
		fmt.Println(Yellow + "[INFO] No pairs yet. Add liquidity to create one." + Reset)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "PAIR\tRESERVE 0\tRESERVE 1\tSHARES\t")
	fmt.Fprintln(w, "----\t---------\t---------\t------\t")
	for _, p := range pools {
		t0, t1 := c.token(p.Token0), c.token(p.Token1)
		fmt.Fprintf(w, "%s/%s\t%s %s\t%s %s\t%s\t\n",
			t0.Symbol, t1.Symbol,
			tokenregistry.FormatAmount(p.Reserve0, t0.Decimals), t0.Symbol,
			tokenregistry.FormatAmount(p.Reserve1, t1.Decimals), t1.Symbol,
			p.TotalSupply.Dec(),
		)
	}
	w.Flush()
}

func (c *console) pairInfo(reader *bufio.Reader) {
	header("PAIR INFO")
	tokenA, tokenB, ok := c.readPair(reader)
	if !ok {
		return
	}

	info, err := c.amm.PairInfo(tokenA.Address, tokenB.Address)
	if err != nil {
		printErr(err)
		return
	}
	if !info.Exists {
		fmt.Println(Yellow + "[INFO] Pair does not exist yet." + Reset)
		return
	}

	printField := func(key string, value any) {
		fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
	}
	printField("Pair", info.Pair)
	printField("Reserve "+tokenA.Symbol, tokenregistry.FormatAmount(info.ReserveA, tokenA.Decimals))
	printField("Reserve "+tokenB.Symbol, tokenregistry.FormatAmount(info.ReserveB, tokenB.Decimals))
	printField("Total Shares", info.TotalSupply.Dec())
	shares, _ := c.amm.BalanceOf(tokenA.Address, tokenB.Address, c.account)
	printField("Your Shares", shares.Dec())

	price, err := c.amm.Price(tokenA.Address, tokenB.Address)
	if err != nil {
		printField("Price", Red+err.Error()+Reset)
		return
	}
	printField("Price", fmt.Sprintf("1 %s = %s %s", tokenB.Symbol, displayPrice(price, tokenA, tokenB), tokenA.Symbol))
}

func (c *console) balances() {
	header("BALANCES " + c.account.Hex())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tBALANCE\t")
	fmt.Fprintln(w, "-----\t-------\t")
	for tokenAddr, amount := range c.ledger.Balances(c.account) {
		t := c.token(tokenAddr)
		fmt.Fprintf(w, "%s\t%s\t\n", t.Symbol, tokenregistry.FormatAmount(amount, t.Decimals))
	}
	w.Flush()

	header("LIQUIDITY SHARES")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "PAIR\tSHARES\tOF SUPPLY\t")
	fmt.Fprintln(w, "----\t------\t---------\t")
	for _, p := range c.amm.AllPairs() {
		shares, err := c.amm.BalanceOf(p.Token0, p.Token1, c.account)
		if err != nil || shares.IsZero() {
			continue
		}
		fmt.Fprintf(w, "%s/%s\t%s\t%s%%\t\n",
			c.token(p.Token0).Symbol, c.token(p.Token1).Symbol,
			shares.Dec(), sharePercent(shares, p.TotalSupply),
		)
	}
	w.Flush()
}

func (c *console) addLiquidity(ctx context.Context, reader *bufio.Reader) {
	header("ADD LIQUIDITY")
	tokenA, tokenB, ok := c.readPair(reader)
	if !ok {
		return
	}

	fmt.Printf(Bold+"Amount of %s: "+Reset, tokenA.Symbol)
	amountA, ok := readAmount(reader, tokenA)
	if !ok {
		return
	}

	info, err := c.amm.PairInfo(tokenA.Address, tokenB.Address)
	if err != nil {
		printErr(err)
		return
	}

	var amountB, minA, minB *uint256.Int
	if info.Exists && !info.TotalSupply.IsZero() {
		amountB, err = c.amm.Quote(amountA, tokenA.Address, tokenB.Address)
		if err != nil {
			printErr(err)
			return
		}
		fmt.Printf("%s   Matching deposit: %s %s%s\n", Green, tokenregistry.FormatAmount(amountB, tokenB.Decimals), tokenB.Symbol, Reset)
		minA, minB = withSlippage(amountA), withSlippage(amountB)
	} else {
		fmt.Printf(Yellow+"New pair. Amount of %s sets the initial price: "+Reset, tokenB.Symbol)
		if amountB, ok = readAmount(reader, tokenB); !ok {
			return
		}
		minA, minB = amountA, amountB
	}

	res, err := c.amm.AddLiquidity(ctx, engine.AddLiquidityParams{
		TokenA:         tokenA.Address,
		TokenB:         tokenB.Address,
		AmountADesired: amountA,
		AmountBDesired: amountB,
		AmountAMin:     minA,
		AmountBMin:     minB,
		Sender:         c.account,
		To:             c.account,
		Deadline:       time.Now().Add(txTimeout),
	})
	if err != nil {
		printErr(err)
		return
	}

	fmt.Printf("\n%sDeposited%s %s %s + %s %s, minted %s%s%s shares\n",
		Green, Reset,
		tokenregistry.FormatAmount(res.AmountA, tokenA.Decimals), tokenA.Symbol,
		tokenregistry.FormatAmount(res.AmountB, tokenB.Decimals), tokenB.Symbol,
		Bold, res.Liquidity.Dec(), Reset,
	)
}

func (c *console) removeLiquidity(ctx context.Context, reader *bufio.Reader) {
	header("REMOVE LIQUIDITY")
	tokenA, tokenB, ok := c.readPair(reader)
	if !ok {
		return
	}

	shares, err := c.amm.BalanceOf(tokenA.Address, tokenB.Address, c.account)
	if err != nil {
		printErr(err)
		return
	}
	fmt.Printf("%s   You hold %s shares%s\n", Gray, shares.Dec(), Reset)
	if shares.IsZero() {
		return
	}

	fmt.Print(Bold + "Shares to burn (or 'all'): " + Reset)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	liquidity := shares
	if !strings.EqualFold(input, "all") {
		liquidity, err = uint256.FromDecimal(input)
		if err != nil {
			fmt.Println(Red + "Invalid share amount." + Reset)
			return
		}
	}

	res, err := c.amm.RemoveLiquidity(ctx, engine.RemoveLiquidityParams{
		TokenA:     tokenA.Address,
		TokenB:     tokenB.Address,
		Liquidity:  liquidity,
		AmountAMin: uint256.NewInt(1),
		AmountBMin: uint256.NewInt(1),
		Sender:     c.account,
		To:         c.account,
		Deadline:   time.Now().Add(txTimeout),
	})
	if err != nil {
		printErr(err)
		return
	}

	fmt.Printf("\n%sWithdrew%s %s %s + %s %s\n",
		Green, Reset,
		tokenregistry.FormatAmount(res.AmountA, tokenA.Decimals), tokenA.Symbol,
		tokenregistry.FormatAmount(res.AmountB, tokenB.Decimals), tokenB.Symbol,
	)
}

func (c *console) swapExactIn(ctx context.Context, reader *bufio.Reader) {
	header("SWAP EXACT INPUT")
	tokenIn, tokenOut, ok := c.readPair(reader)
	if !ok {
		return
	}
	fmt.Printf(Bold+"Amount of %s to sell: "+Reset, tokenIn.Symbol)
	amountIn, ok := readAmount(reader, tokenIn)
	if !ok {
		return
	}

	path := []common.Address{tokenIn.Address, tokenOut.Address}
	quoted, err := c.amm.GetAmountOut(amountIn, path)
	if err != nil {
		printErr(err)
		return
	}

	res, err := c.amm.SwapExactTokensForTokens(ctx, engine.SwapExactInParams{
		AmountIn:     amountIn,
		AmountOutMin: withSlippage(quoted),
		Path:         path,
		Sender:       c.account,
		To:           c.account,
		Deadline:     time.Now().Add(txTimeout),
	})
	if err != nil {
		printErr(err)
		return
	}
	printSwap(res, tokenIn, tokenOut)
}

func (c *console) swapExactOut(ctx context.Context, reader *bufio.Reader) {
	header("SWAP EXACT OUTPUT")
	tokenIn, tokenOut, ok := c.readPair(reader)
	if !ok {
		return
	}
	fmt.Printf(Bold+"Amount of %s to buy: "+Reset, tokenOut.Symbol)
	amountOut, ok := readAmount(reader, tokenOut)
	if !ok {
		return
	}

	path := []common.Address{tokenIn.Address, tokenOut.Address}
	quoted, err := c.amm.GetAmountIn(amountOut, path)
	if err != nil {
		printErr(err)
		return
	}

	res, err := c.amm.SwapTokensForExactTokens(ctx, engine.SwapExactOutParams{
		AmountOut:   amountOut,
		AmountInMax: withSlippageUp(quoted),
		Path:        path,
		Sender:      c.account,
		To:          c.account,
		Deadline:    time.Now().Add(txTimeout),
	})
	if err != nil {
		printErr(err)
		return
	}
	printSwap(res, tokenIn, tokenOut)
}

func (c *console) quote(reader *bufio.Reader) {
	header("QUOTE")
	tokenIn, tokenOut, ok := c.readPair(reader)
	if !ok {
		return
	}
	fmt.Printf(Bold+"Amount of %s: "+Reset, tokenIn.Symbol)
	amountIn, ok := readAmount(reader, tokenIn)
	if !ok {
		return
	}

	path := []common.Address{tokenIn.Address, tokenOut.Address}
	out, err := c.amm.GetAmountOut(amountIn, path)
	if err != nil {
		printErr(err)
		return
	}
	fair, err := c.amm.Quote(amountIn, tokenIn.Address, tokenOut.Address)
	if err != nil {
		printErr(err)
		return
	}

	fmt.Printf("%sSwap Output:%s %s %s\n", Bold, Reset, tokenregistry.FormatAmount(out, tokenOut.Decimals), tokenOut.Symbol)
	fmt.Printf("%sAt Spot:%s     %s %s\n", Gray, Reset, tokenregistry.FormatAmount(fair, tokenOut.Decimals), tokenOut.Symbol)
}

func (c *console) watchEvents(reader *bufio.Reader) {
	events, cancel := c.broadcaster.Subscribe()
	defer cancel()

	fmt.Println(Green + "Watching events... (Press 'Enter' to stop)" + Reset)

	stopCh := make(chan struct{})
	go func() {
		reader.ReadString('\n')
		close(stopCh)
	}()

	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				fmt.Println(Yellow + "[WARN] Event stream fell behind and was closed." + Reset)
				<-stopCh
				return
			}
			c.printEvent(ev)
		}
	}
}

func (c *console) switchAccount(reader *bufio.Reader) {
	header("ACCOUNTS")
	for i, a := range c.accounts {
		marker := " "
		if a == c.account {
			marker = Green + "*" + Reset
		}
		fmt.Printf(" %s %s%d.%s %s\n", marker, Cyan, i+1, Reset, a.Hex())
	}
	fmt.Print(Bold + "Select account (number or address): " + Reset)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	var idx int
	if _, err := fmt.Sscanf(input, "%d", &idx); err == nil && idx >= 1 && idx <= len(c.accounts) {
		c.account = c.accounts[idx-1]
	} else if common.IsHexAddress(input) {
		c.account = common.HexToAddress(input)
	} else {
		fmt.Println(Red + "Invalid selection." + Reset)
		return
	}
	fmt.Println(Green + "Now acting as " + c.account.Hex() + Reset)
}

// --- HELPERS ---

func (c *console) token(address common.Address) tokenregistry.Token {
	if t, ok := c.tokens.GetByAddress(address); ok {
		return t
	}
	return tokenregistry.Token{Address: address, Symbol: address.Hex(), Decimals: 18}
}

func (c *console) readPair(reader *bufio.Reader) (tokenregistry.Token, tokenregistry.Token, bool) {
	fmt.Print(Bold + "First token (symbol or address): " + Reset)
	tokenA, err := c.readToken(reader)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return tokenregistry.Token{}, tokenregistry.Token{}, false
	}
	fmt.Print(Bold + "Second token (symbol or address): " + Reset)
	tokenB, err := c.readToken(reader)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return tokenregistry.Token{}, tokenregistry.Token{}, false
	}
	return tokenA, tokenB, true
}

func (c *console) readToken(reader *bufio.Reader) (tokenregistry.Token, error) {
	input, _ := reader.ReadString('\n')
	return c.tokens.Resolve(input)
}

func (c *console) printEvent(ev engine.Event) {
	tokenA, tokenB := c.token(ev.TokenA), c.token(ev.TokenB)
	ts := time.Unix(0, ev.Timestamp).Format("15:04:05")
	color := Cyan
	switch ev.Type {
	case engine.EventDeposit:
		color = Green
	case engine.EventWithdrawal:
		color = Yellow
	}
	fmt.Printf("%s#%-6d%s %s %s%-10s%s %s %s / %s %s  %sby %s%s\n",
		Gray, ev.Sequence, Reset, ts,
		color, ev.Type, Reset,
		tokenregistry.FormatAmount(ev.AmountA, tokenA.Decimals), tokenA.Symbol,
		tokenregistry.FormatAmount(ev.AmountB, tokenB.Decimals), tokenB.Symbol,
		Gray, ev.Sender.Hex(), Reset,
	)
}

func readAmount(reader *bufio.Reader, t tokenregistry.Token) (*uint256.Int, bool) {
	input, _ := reader.ReadString('\n')
	amount, err := tokenregistry.ParseAmount(input, t.Decimals)
	if err != nil {
		fmt.Println(Red + err.Error() + Reset)
		return nil, false
	}
	return amount, true
}

func printSwap(res engine.SwapResult, tokenIn, tokenOut tokenregistry.Token) {
	fmt.Printf("\n%sSwapped%s %s %s for %s%s %s%s\n",
		Green, Reset,
		tokenregistry.FormatAmount(res.AmountIn, tokenIn.Decimals), tokenIn.Symbol,
		Bold, tokenregistry.FormatAmount(res.AmountOut, tokenOut.Decimals), tokenOut.Symbol, Reset,
	)
}

func printErr(err error) {
	fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
}

func withSlippage(v *uint256.Int) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(v, uint256.NewInt(10_000-slippageBps), uint256.NewInt(10_000))
	return out
}

func withSlippageUp(v *uint256.Int) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(v, uint256.NewInt(10_000+slippageBps), uint256.NewInt(10_000))
	return out
}

// displayPrice converts an 18-decimal base-unit price of tokenB in tokenA into
// display units.
func displayPrice(price *uint256.Int, tokenA, tokenB tokenregistry.Token) string {
	scaleA := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(tokenA.Decimals)))
	scaleB := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(tokenB.Decimals)))
	adjusted, overflow := new(uint256.Int).MulDivOverflow(price, scaleB, scaleA)
	if overflow {
		return "overflow"
	}
	return tokenregistry.FormatAmount(adjusted, 18)
}

func sharePercent(shares, supply *uint256.Int) string {
	if supply.IsZero() {
		return "0"
	}
	bps, _ := new(uint256.Int).MulDivOverflow(shares, uint256.NewInt(10_000), supply)
	return tokenregistry.FormatAmount(bps, 2)
}

func loadConfig() (*config.ServerConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
