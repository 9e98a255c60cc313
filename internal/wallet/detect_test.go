package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/dagsplit/internal/wallet"
	"github.com/susu3304/dagsplit/internal/wallet/wallettest"
)

func TestSelect(t *testing.T) {
	metamask := wallettest.New(wallet.Capabilities{IsMetaMask: true})
	metamask2 := wallettest.New(wallet.Capabilities{IsMetaMask: true})
	coinbase := wallettest.New(wallet.Capabilities{IsCoinbaseWallet: true})
	brave := wallettest.New(wallet.Capabilities{IsMetaMask: true, IsBraveWallet: true})

	multi := &wallet.Injected{Primary: coinbase, Providers: []wallet.Provider{brave, metamask, coinbase, metamask2}}

	tests := []struct {
		name     string
		injected *wallet.Injected
		kind     wallet.Kind
		want     wallet.Provider
		wantErr  error
	}{
		{name: "no wallet object", injected: nil, kind: wallet.KindMetaMask, wantErr: wallet.ErrNoProvider},
		{name: "empty wallet object", injected: &wallet.Injected{}, kind: wallet.KindDefault, wantErr: wallet.ErrNoProvider},
		{name: "first match wins", injected: multi, kind: wallet.KindMetaMask, want: metamask},
		{name: "brave is not metamask", injected: &wallet.Injected{Providers: []wallet.Provider{brave}}, kind: wallet.KindBrave, want: brave},
		{name: "coinbase in list", injected: multi, kind: wallet.KindCoinbase, want: coinbase},
		{name: "default takes primary", injected: multi, kind: wallet.KindDefault, want: coinbase},
		{name: "default without primary", injected: &wallet.Injected{Providers: []wallet.Provider{metamask2, metamask}}, kind: wallet.KindDefault, want: metamask2},
		{name: "single provider", injected: &wallet.Injected{Primary: metamask}, kind: wallet.KindMetaMask, want: metamask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wallet.Select(tt.injected, tt.kind)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestSelectNotInstalled(t *testing.T) {
	in := &wallet.Injected{Primary: wallettest.New(wallet.Capabilities{IsMetaMask: true})}

	_, err := wallet.Select(in, wallet.KindCoinbase)

	var notFound *wallet.WalletNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, wallet.KindCoinbase, notFound.Kind)
	assert.Equal(t, "coinbase wallet is not installed", err.Error())
}

func TestParseKindAndDetect(t *testing.T) {
	assert.Equal(t, wallet.KindMetaMask, wallet.ParseKind(" MetaMask "))
	assert.Equal(t, wallet.KindDefault, wallet.ParseKind("phantom"))

	in := &wallet.Injected{Providers: []wallet.Provider{
		wallettest.New(wallet.Capabilities{IsCoinbaseWallet: true}),
		wallettest.New(wallet.Capabilities{IsMetaMask: true, IsRabby: true}),
	}}
	assert.Equal(t, []wallet.Kind{wallet.KindCoinbase, wallet.KindRabby}, wallet.Detect(in))
	assert.Empty(t, wallet.Detect(nil))
}
