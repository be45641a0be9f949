// Package ui implements the interactive game interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view flow:
//  1. [PlaylistInputView] : Paste a playlist URL (skipped when one is saved)
//  2. [LoadingView] : Deck fetch and shuffle
//  3. [GameView] : The card stack — listen, guess, flip
//  4. [ScoreboardView] : Competitive-mode standings
//  5. [WinnerView] : Declared when a player reaches the win threshold
//
// The [Model] implements bubbletea's standard Init/Update/View pattern. All
// playback and catalog calls run inside tea.Cmd closures so the render loop
// never blocks on the network.
//
// Keyboard navigation uses vim-style bindings (h/l, f, space, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
